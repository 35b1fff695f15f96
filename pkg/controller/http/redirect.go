package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/hackernyous/pkg/usecase"
	"github.com/secmon-lab/hackernyous/pkg/utils/async"
	"github.com/secmon-lab/hackernyous/pkg/utils/logging"
)

// redirectHandler sends the reader to the clicked article and records the
// click in the background, once per link. Broken links fall back to homeURL
// so a reader never sees an error page.
func redirectHandler(links LinkResolver, clicks ClickUseCase, dedup *clickDeduper, homeURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.From(ctx)

		token := chi.URLParam(r, "token")
		userID, articleID, err := links.Resolve(token)
		if err != nil {
			logger.Info("invalid click token", "error", err.Error())
			http.Redirect(w, r, homeURL, http.StatusFound)
			return
		}

		article, err := clicks.Article(ctx, articleID)
		if err != nil {
			logger.Warn("clicked article unavailable",
				"user_id", userID,
				"article_id", articleID,
				"error", err.Error())
			http.Redirect(w, r, homeURL, http.StatusFound)
			return
		}

		if !dedup.First(token) {
			logger.Debug("repeated click ignored", "user_id", userID, "article_id", articleID)
			http.Redirect(w, r, article.URL, http.StatusFound)
			return
		}

		async.Dispatch(ctx, func(ctx context.Context) error {
			if err := clicks.ApplyClickFeedback(ctx, userID, articleID); err != nil {
				return goerr.Wrap(err, "failed to apply click feedback",
					goerr.V(usecase.UserIDKey, userID),
					goerr.V(usecase.ArticleIDKey, articleID))
			}
			return nil
		})

		http.Redirect(w, r, article.URL, http.StatusFound)
	}
}
