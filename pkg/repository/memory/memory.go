package memory

import (
	"github.com/secmon-lab/hackernyous/pkg/domain/interfaces"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

type Memory struct {
	vector  *vectorRepository
	profile *profileRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		vector:  newVectorRepository(),
		profile: newProfileRepository(),
	}
}

func (m *Memory) Vector() interfaces.VectorRepository {
	return m.vector
}

func (m *Memory) Profile() interfaces.ProfileRepository {
	return m.profile
}

func (m *Memory) Close() error {
	return nil
}
