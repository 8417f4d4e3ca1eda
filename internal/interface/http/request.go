package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/alem-hub/coursequest/internal/domain/shared"
	"github.com/alem-hub/coursequest/pkg/logger"
)

// UserHeader carries the caller's user id.
const UserHeader = "X-User-ID"

type contextKey string

const contextKeyUser contextKey = "user_id"

// callerMiddleware resolves the caller from UserHeader, falling back to
// the configured default user.
func (s *Server) callerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := shared.UserID(s.config.DefaultUserID)
		if raw := strings.TrimSpace(r.Header.Get(UserHeader)); raw != "" {
			id, err := shared.ParseUserID(raw)
			if err != nil {
				writeJSONError(w, r, http.StatusBadRequest, "invalid_user", "X-User-ID must be a non-negative integer", "")
				return
			}
			userID = id
		}
		ctx := context.WithValue(r.Context(), contextKeyUser, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerFrom(ctx context.Context) shared.UserID {
	id, _ := ctx.Value(contextKeyUser).(shared.UserID)
	return id
}

// ══════════════════════════════════════════════════════════════════════════════
// PARAMETERS
// ══════════════════════════════════════════════════════════════════════════════

type courseParams struct {
	CourseID int64 `validate:"gt=0"`
}

type moduleParams struct {
	CourseID int64 `validate:"gte=0"`
	ModuleID int64 `validate:"gt=0"`
}

type listCoursesParams struct {
	Search          string  `validate:"max=200"`
	PremiumOnly     bool
	FreeOnly        bool
	EnrolledOnly    bool
	NotEnrolledOnly bool
	TagIDs          []int64 `validate:"max=20,dive,gt=0"`
}

type walletParams struct {
	History int `validate:"gte=0,lte=200"`
}

const defaultHistoryLimit = 20

// errBadParam marks a parameter that could not be parsed.
var errBadParam = errors.New("malformed parameter")

func pathInt(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errBadParam
	}
	return v, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errBadParam
	}
	return b, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errBadParam
	}
	return v, nil
}

// queryIDs parses a comma separated id list.
func queryIDs(r *http.Request, name string) ([]int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, errBadParam
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Server) parseCourse(r *http.Request) (courseParams, error) {
	var p courseParams
	var err error
	if p.CourseID, err = pathInt(r, "courseID"); err != nil {
		return p, err
	}
	return p, s.validate.Struct(p)
}

func (s *Server) parseModule(r *http.Request) (moduleParams, error) {
	var p moduleParams
	var err error
	if p.CourseID, err = pathInt(r, "courseID"); err != nil {
		return p, err
	}
	if p.ModuleID, err = pathInt(r, "moduleID"); err != nil {
		return p, err
	}
	return p, s.validate.Struct(p)
}

func (s *Server) parseListCourses(r *http.Request) (listCoursesParams, error) {
	p := listCoursesParams{Search: r.URL.Query().Get("q")}
	var err error
	if p.PremiumOnly, err = queryBool(r, "premium_only"); err != nil {
		return p, err
	}
	if p.FreeOnly, err = queryBool(r, "free_only"); err != nil {
		return p, err
	}
	if p.EnrolledOnly, err = queryBool(r, "enrolled_only"); err != nil {
		return p, err
	}
	if p.NotEnrolledOnly, err = queryBool(r, "not_enrolled_only"); err != nil {
		return p, err
	}
	if p.TagIDs, err = queryIDs(r, "tags"); err != nil {
		return p, err
	}
	return p, s.validate.Struct(p)
}

func (s *Server) parseWallet(r *http.Request) (walletParams, error) {
	var p walletParams
	var err error
	if p.History, err = queryInt(r, "history", defaultHistoryLimit); err != nil {
		return p, err
	}
	return p, s.validate.Struct(p)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeParamError answers a request whose parameters failed to parse or
// validate.
func writeParamError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field()+" failed "+fe.Tag())
		}
		writeJSONError(w, r, http.StatusBadRequest, "validation_failed", "request parameters are invalid", strings.Join(fields, "; "))
		return
	}
	writeJSONError(w, r, http.StatusBadRequest, "bad_request", "request parameters are malformed", "")
}

// writeError maps a storage or domain error to a response. Unexpected
// errors are logged and answered with a generic 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case shared.IsNotFound(err):
		writeJSONError(w, r, http.StatusNotFound, "not_found", err.Error(), "")
	case shared.IsValidation(err):
		writeJSONError(w, r, http.StatusBadRequest, "invalid_input", err.Error(), "")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeJSONError(w, r, http.StatusServiceUnavailable, "timeout", "the request did not finish in time", "")
	default:
		s.logger.Error("request failed",
			logger.Err(err),
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
		)
		writeJSONError(w, r, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred", "")
	}
}
