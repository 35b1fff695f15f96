package usecase

// StoreError is exported for testing
var StoreError = storeError
