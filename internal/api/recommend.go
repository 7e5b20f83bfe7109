package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/kalambet/bookwise/internal/pipeline"
	"go.uber.org/zap"
)

const maxRequestBodySize = 64 << 10

var validate = validator.New()

type recommendRequest struct {
	Question string `json:"question" validate:"required,max=500"`
}

type recommendResponse struct {
	Answer string `json:"answer"`
}

func handleRecommend(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Recommender == nil {
			msg := "recommendation feature is unavailable"
			if deps.InitErr != nil {
				msg += ": " + deps.InitErr.Error()
			}
			httpError(w, http.StatusServiceUnavailable, errUnavailable, "%s", msg)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req recommendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, errInvalidRequest, "invalid request body: %v", err)
			return
		}
		question, err := checkQuestion(req.Question)
		if err != nil {
			httpError(w, http.StatusBadRequest, errInvalidRequest, "%s", err.Error())
			return
		}

		ctx := r.Context()
		if deps.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, deps.Timeout)
			defer cancel()
		}

		rec, err := deps.Recommender.Recommend(ctx, question)
		switch {
		case err == nil:
		case errors.Is(err, pipeline.ErrEmptyQuery):
			httpError(w, http.StatusBadRequest, errInvalidRequest, "question is required")
			return
		case errors.Is(err, context.DeadlineExceeded):
			httpError(w, http.StatusGatewayTimeout, errUpstream, "recommendation timed out")
			return
		case errors.Is(err, pipeline.ErrCompose):
			zap.L().Error("recommendation model failed", zap.Error(err))
			httpError(w, http.StatusBadGateway, errUpstream, "language model request failed")
			return
		default:
			zap.L().Error("recommendation failed", zap.Error(err))
			httpError(w, http.StatusInternalServerError, errInternal, "recommendation failed")
			return
		}

		w.Header().Set("X-Recommendation-ID", rec.ID)
		writeJSON(w, http.StatusCreated, recommendResponse{Answer: rec.Answer})
	}
}

// checkQuestion trims q and applies the recommendRequest rules. The returned
// error carries a user-facing message.
func checkQuestion(q string) (string, error) {
	req := recommendRequest{Question: strings.TrimSpace(q)}
	if err := validate.Struct(req); err != nil {
		return "", errors.New(validationMessage(err))
	}
	return req.Question, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	switch verrs[0].Tag() {
	case "required":
		return "question is required"
	case "max":
		return "question must be at most 500 characters"
	default:
		return "question is invalid"
	}
}
