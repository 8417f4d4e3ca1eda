package http

import (
	"net/http"

	"github.com/alem-hub/coursequest/internal/application/progression"
	"github.com/alem-hub/coursequest/internal/application/query"
	"github.com/alem-hub/coursequest/internal/application/session"
	"github.com/alem-hub/coursequest/internal/domain/shared"
	"github.com/alem-hub/coursequest/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// OUTCOMES
// ══════════════════════════════════════════════════════════════════════════════

// OutcomeResponse is returned by every state-changing endpoint.
type OutcomeResponse struct {
	Outcome string `json:"outcome"`
	// Balance is the caller's balance after the operation.
	Balance int64 `json:"balance"`
}

// CompletionResponse is returned by module completion.
type CompletionResponse struct {
	Outcome                 string `json:"outcome"`
	ModuleCompleted         bool   `json:"module_completed"`
	CompletedCount          int    `json:"completed_count"`
	RequiredCount           int    `json:"required_count"`
	CourseCompleted         bool   `json:"course_completed"`
	CompletionRewardGranted bool   `json:"completion_reward_granted"`
	TimedRewardGranted      bool   `json:"timed_reward_granted"`
	Balance                 int64  `json:"balance"`
}

// outcomeStatus maps an engine outcome to an HTTP status.
func outcomeStatus(o progression.Outcome) int {
	switch o {
	case progression.OutcomeOK:
		return http.StatusOK
	case progression.OutcomeCourseNotFound, progression.OutcomeModuleNotFound:
		return http.StatusNotFound
	case progression.OutcomeInsufficientFunds:
		return http.StatusPaymentRequired
	default:
		return http.StatusConflict
	}
}

var outcomeMessages = map[progression.Outcome]string{
	progression.OutcomeAlreadyEnrolled:   "already enrolled in this course",
	progression.OutcomeNotEnrolled:       "not enrolled in this course",
	progression.OutcomeCourseNotFound:    "course not found",
	progression.OutcomeModuleNotFound:    "module not found in this course",
	progression.OutcomeNotBonus:          "module is not a bonus module",
	progression.OutcomeAlreadyOpen:       "module is already open",
	progression.OutcomeInsufficientFunds: "not enough coins",
	progression.OutcomeAlreadyClaimed:    "reward already claimed",
	progression.OutcomeNotCompleted:      "course is not completed",
	progression.OutcomeTimeLimitExceeded: "course time limit exceeded",
	progression.OutcomeNoTimeLimit:       "course has no time limit",
	progression.OutcomeModuleLocked:      "module is locked",
	progression.OutcomeAlreadyCompleted:  "module is already completed",
}

func (s *Server) writeOutcome(w http.ResponseWriter, r *http.Request, userID shared.UserID, o progression.Outcome) {
	if !o.OK() {
		writeJSONError(w, r, outcomeStatus(o), o.String(), outcomeMessages[o], "")
		return
	}
	balance, err := s.balance(r, userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, OutcomeResponse{Outcome: o.String(), Balance: balance}, nil)
}

func (s *Server) balance(r *http.Request, userID shared.UserID) (int64, error) {
	dto, err := s.deps.Wallet.Handle(r.Context(), query.GetWalletQuery{UserID: userID})
	if err != nil {
		return 0, err
	}
	return dto.Balance, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseListCourses(r)
	if err != nil {
		writeParamError(w, r, err)
		return
	}
	tags := make([]shared.TagID, 0, len(p.TagIDs))
	for _, id := range p.TagIDs {
		tags = append(tags, shared.TagID(id))
	}

	courses, err := s.deps.Courses.Handle(r.Context(), query.GetFilteredCoursesQuery{
		UserID: callerFrom(r.Context()),
		Filter: query.CourseFilter{
			SearchText:      p.Search,
			PremiumOnly:     p.PremiumOnly,
			FreeOnly:        p.FreeOnly,
			EnrolledOnly:    p.EnrolledOnly,
			NotEnrolledOnly: p.NotEnrolledOnly,
			RequiredTagIDs:  tags,
		},
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, courses, &ResponseMeta{TotalCount: len(courses)})
}

func (s *Server) handleGetRoadmap(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseCourse(r)
	if err != nil {
		writeParamError(w, r, err)
		return
	}
	roadmap, err := s.deps.Roadmap.Handle(r.Context(), query.GetRoadmapQuery{
		UserID:   callerFrom(r.Context()),
		CourseID: shared.CourseID(p.CourseID),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, roadmap, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseCourse(r)
	if err != nil {
		writeParamError(w, r, err)
		return
	}
	userID := callerFrom(r.Context())
	outcome, err := s.deps.Engine.EnrollInCourse(r.Context(), userID, shared.CourseID(p.CourseID))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOutcome(w, r, userID, outcome)
}

func (s *Server) handleCompleteModule(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseModule(r)
	if err != nil {
		writeParamError(w, r, err)
		return
	}
	userID := callerFrom(r.Context())
	res, err := s.deps.Sessions.CompleteModule(r.Context(), userID, shared.CourseID(p.CourseID), shared.ModuleID(p.ModuleID))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !res.Outcome.OK() {
		writeJSONError(w, r, outcomeStatus(res.Outcome), res.Outcome.String(), outcomeMessages[res.Outcome], "")
		return
	}
	balance, err := s.balance(r, userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, CompletionResponse{
		Outcome:                 res.Outcome.String(),
		ModuleCompleted:         res.ModuleCompleted,
		CompletedCount:          res.CompletedCount,
		RequiredCount:           res.RequiredCount,
		CourseCompleted:         res.CourseCompleted,
		CompletionRewardGranted: res.CompletionRewardGranted,
		TimedRewardGranted:      res.TimedRewardGranted,
		Balance:                 balance,
	}, nil)
}

func (s *Server) handleBuyBonusModule(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseModule(r)
	if err != nil {
		writeParamError(w, r, err)
		return
	}
	userID := callerFrom(r.Context())
	outcome, err := s.deps.Engine.BuyBonusModule(r.Context(), userID, shared.ModuleID(p.ModuleID), shared.CourseID(p.CourseID))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOutcome(w, r, userID, outcome)
}

func (s *Server) handleClickModuleImage(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseModule(r)
	if err != nil {
		writeParamError(w, r, err)
		return
	}
	userID := callerFrom(r.Context())
	outcome, err := s.deps.Engine.ClickModuleImage(r.Context(), userID, shared.ModuleID(p.ModuleID))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOutcome(w, r, userID, outcome)
}

// ══════════════════════════════════════════════════════════════════════════════
// REWARDS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleClaimCompletionReward(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseCourse(r)
	if err != nil {
		writeParamError(w, r, err)
		return
	}
	userID := callerFrom(r.Context())
	outcome, err := s.deps.Engine.ClaimCompletionReward(r.Context(), userID, shared.CourseID(p.CourseID))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOutcome(w, r, userID, outcome)
}

// handleClaimTimedReward claims against the recorded time spent. An open
// session is flushed first so its pending seconds count.
func (s *Server) handleClaimTimedReward(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseCourse(r)
	if err != nil {
		writeParamError(w, r, err)
		return
	}
	ctx := r.Context()
	userID := callerFrom(ctx)
	courseID := shared.CourseID(p.CourseID)

	if sess, ok := s.deps.Sessions.Get(userID, courseID); ok {
		if err := sess.Flush(ctx); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	spent, err := s.deps.Progress.GetTimeSpent(ctx, userID, courseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	outcome, err := s.deps.Engine.ClaimTimedReward(ctx, userID, courseID, spent)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOutcome(w, r, userID, outcome)
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSIONS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseCourse(r)
	if err != nil {
		writeParamError(w, r, err)
		return
	}
	ctx := r.Context()
	userID := callerFrom(ctx)
	courseID := shared.CourseID(p.CourseID)

	enrolled, err := s.deps.Progress.IsEnrolled(ctx, userID, courseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !enrolled {
		o := progression.OutcomeNotEnrolled
		writeJSONError(w, r, outcomeStatus(o), o.String(), outcomeMessages[o], "")
		return
	}

	sess, err := s.deps.Sessions.Start(userID, courseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Debug("session started",
		logger.String("user_id", userID.String()),
		logger.String("course_id", courseID.String()),
	)
	writeJSON(w, r, http.StatusOK, sess.State(), nil)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, sess.State(), nil)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	sess.Touch()
	writeJSON(w, r, http.StatusOK, sess.State(), nil)
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseCourse(r)
	if err != nil {
		writeParamError(w, r, err)
		return
	}
	userID := callerFrom(r.Context())
	closed, err := s.deps.Sessions.Stop(r.Context(), userID, shared.CourseID(p.CourseID))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !closed {
		writeJSONError(w, r, http.StatusNotFound, "session_not_found", "no open session for this course", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*session.CourseSession, bool) {
	p, err := s.parseCourse(r)
	if err != nil {
		writeParamError(w, r, err)
		return nil, false
	}
	sess, ok := s.deps.Sessions.Get(callerFrom(r.Context()), shared.CourseID(p.CourseID))
	if !ok {
		writeJSONError(w, r, http.StatusNotFound, "session_not_found", "no open session for this course", "")
		return nil, false
	}
	return sess, true
}

// ══════════════════════════════════════════════════════════════════════════════
// WALLET
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseWallet(r)
	if err != nil {
		writeParamError(w, r, err)
		return
	}
	dto, err := s.deps.Wallet.Handle(r.Context(), query.GetWalletQuery{
		UserID:       callerFrom(r.Context()),
		HistoryLimit: p.History,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto, nil)
}

func (s *Server) handleClaimDailyBonus(w http.ResponseWriter, r *http.Request) {
	userID := callerFrom(r.Context())
	outcome, err := s.deps.Engine.ClaimDailyLoginBonus(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOutcome(w, r, userID, outcome)
}
