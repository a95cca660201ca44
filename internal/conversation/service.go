// Package conversation ties an inbound WhatsApp message to its user, runs it
// through the router and sends the composed reply.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/composer"
	"github.com/Idosegev23/finhealer/internal/engine"
	"github.com/Idosegev23/finhealer/internal/learning"
	"github.com/Idosegev23/finhealer/internal/model"
	"github.com/Idosegev23/finhealer/internal/router"
	"github.com/Idosegev23/finhealer/internal/service"
	"github.com/Idosegev23/finhealer/internal/whatsapp"
)

// Store is the persistence the service needs.
type Store interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*model.User, error)
	UpdateUserPhase(ctx context.Context, userID string, phase model.Phase) error
	GetConversationState(ctx context.Context, userID string) (*model.ConversationState, error)
	SaveConversationState(ctx context.Context, state *model.ConversationState) error
	GetTransactions(ctx context.Context, userID string, filter service.TransactionFilter) ([]model.Transaction, error)
}

// Dispatcher decides what to do with a message.
type Dispatcher interface {
	Dispatch(ctx context.Context, state router.State, in router.Inbound) (router.Result, error)
}

// Suggester looks up the learned rule for a vendor.
type Suggester interface {
	Suggest(ctx context.Context, userID, vendor string) (*learning.Suggestion, error)
}

// Service handles one message at a time per call. It keeps no state between
// calls; everything lives in the store.
type Service struct {
	store     Store
	router    Dispatcher
	composer  composer.Composer
	gateway   whatsapp.Gateway
	suggester Suggester
	logger    *slog.Logger
}

// New creates a conversation service.
func New(store Store, r Dispatcher, c composer.Composer, g whatsapp.Gateway, s Suggester) *Service {
	return &Service{
		store:     store,
		router:    r,
		composer:  c,
		gateway:   g,
		suggester: s,
		logger:    slog.Default().With("component", "conversation"),
	}
}

// HandleInbound processes a message from phone. An unknown phone returns
// common.ErrNotFound and nothing is sent. State is persisted before the reply
// goes out, so a gateway failure (common.ErrUpstream) never loses it.
func (s *Service) HandleInbound(ctx context.Context, phone, text string) error {
	phone, err := whatsapp.NormalizePhone(phone)
	if err != nil {
		return err
	}

	user, err := s.store.GetUserByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Warn("Message from unknown phone", "phone_suffix", suffix(phone))
		}
		return err
	}

	stored, err := s.store.GetConversationState(ctx, user.ID)
	if err != nil {
		return err
	}
	state := router.State{Phase: user.Phase, Pending: stored.Pending, Retries: stored.Retries}

	result, err := s.router.Dispatch(ctx, state, router.Inbound{UserID: user.ID, Phone: phone, Text: text})
	if err != nil {
		s.logger.Error("Dispatch failed", "user_id", user.ID, "error", err)
		return err
	}

	actions := []model.Action{result.Action}
	next := result.State

	// A resolved question frees the slot for the next one.
	if state.Pending != nil && next.Pending == nil && result.Action.Kind == model.ActionCategoryConfirmed {
		q, err := s.nextQuestion(ctx, user.ID)
		if err != nil {
			s.logger.Warn("Failed to find next question", "user_id", user.ID, "error", err)
		} else if q != nil {
			if asked, ok := router.Ask(next, q.Vendor, q.SuggestedCategory, q.TransactionIDs); ok {
				next = asked.State
				actions = append(actions, asked.Action)
			}
		}
	}

	if err := s.persist(ctx, user, next); err != nil {
		return err
	}

	s.logger.Debug("Message handled",
		"user_id", user.ID,
		"action", result.Action.Kind,
		"phase", next.Phase,
		"pending", next.Pending != nil)

	for _, a := range actions {
		if err := s.send(ctx, user.Phone, a); err != nil {
			return err
		}
	}
	return nil
}

// Notify composes and sends an action outside of a conversation turn.
func (s *Service) Notify(ctx context.Context, userID string, action model.Action) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	return s.send(ctx, user.Phone, action)
}

// ReportAutoClassified tells the user about each vendor whose transactions
// were confirmed by its rule, one message per vendor. It returns how many
// messages were sent.
func (s *Service) ReportAutoClassified(ctx context.Context, userID string, autos []engine.AutoClassification) (int, error) {
	if len(autos) == 0 {
		return 0, nil
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	for i, a := range autos {
		if err := s.send(ctx, user.Phone, a.Action()); err != nil {
			return i, err
		}
	}
	return len(autos), nil
}

// AskQuestions turns the first classification question into a pending action
// and sends it. Nothing is asked while another question is pending; the rest
// are picked up one by one as answers come in. It reports whether a question
// was sent.
func (s *Service) AskQuestions(ctx context.Context, userID string, questions []engine.Question) (bool, error) {
	if len(questions) == 0 {
		return false, nil
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	stored, err := s.store.GetConversationState(ctx, userID)
	if err != nil {
		return false, err
	}

	state := router.State{Phase: user.Phase, Pending: stored.Pending, Retries: stored.Retries}
	q := questions[0]
	asked, ok := router.Ask(state, q.Vendor, q.SuggestedCategory, q.TransactionIDs)
	if !ok {
		return false, nil
	}
	if err := s.persist(ctx, user, asked.State); err != nil {
		return false, err
	}
	if err := s.send(ctx, user.Phone, asked.Action); err != nil {
		return true, err
	}
	return true, nil
}

func (s *Service) persist(ctx context.Context, user *model.User, next router.State) error {
	err := s.store.SaveConversationState(ctx, &model.ConversationState{
		UserID:  user.ID,
		Pending: next.Pending,
		Retries: next.Retries,
	})
	if err != nil {
		return fmt.Errorf("save conversation state: %w", err)
	}

	if next.Phase != user.Phase && next.Phase.Valid() {
		if err := s.store.UpdateUserPhase(ctx, user.ID, next.Phase); err != nil {
			return fmt.Errorf("update phase: %w", err)
		}
		s.logger.Info("Phase advanced", "user_id", user.ID, "from", user.Phase, "to", next.Phase)
		user.Phase = next.Phase
	}
	return nil
}

func (s *Service) send(ctx context.Context, phone string, action model.Action) error {
	body := s.composer.Compose(ctx, action)
	if err := s.gateway.Send(ctx, phone, body); err != nil {
		s.logger.Error("Failed to send reply", "phone_suffix", suffix(phone), "action", action.Kind, "error", err)
		if errors.Is(err, common.ErrUpstream) {
			return err
		}
		return common.Upstream("send reply", err)
	}
	return nil
}

// nextQuestion picks the unresolved expense vendor with the most proposed
// transactions.
func (s *Service) nextQuestion(ctx context.Context, userID string) (*engine.Question, error) {
	txns, err := s.store.GetTransactions(ctx, userID, service.TransactionFilter{
		Status:    model.StatusProposed,
		Direction: model.DirectionExpense,
	})
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return nil, nil
	}

	groups := make(map[string]*engine.Question)
	for _, t := range txns {
		q := groups[t.NormalizedVendor]
		if q == nil {
			q = &engine.Question{Vendor: t.NormalizedVendor, Tier: learning.TierAsk}
			groups[t.NormalizedVendor] = q
		}
		q.TransactionIDs = append(q.TransactionIDs, t.ID)
		q.Total += t.Amount
	}

	vendors := make([]string, 0, len(groups))
	for v := range groups {
		vendors = append(vendors, v)
	}
	sort.Slice(vendors, func(i, j int) bool {
		a, b := groups[vendors[i]], groups[vendors[j]]
		if len(a.TransactionIDs) != len(b.TransactionIDs) {
			return len(a.TransactionIDs) > len(b.TransactionIDs)
		}
		return a.Vendor < b.Vendor
	})

	q := groups[vendors[0]]
	if s.suggester != nil {
		sug, err := s.suggester.Suggest(ctx, userID, q.Vendor)
		if err != nil {
			return nil, err
		}
		if sug != nil && sug.Tier != learning.TierAsk {
			q.SuggestedCategory = sug.Category
			q.Confidence = sug.Confidence
			q.Tier = sug.Tier
		}
	}
	return q, nil
}

func suffix(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return phone[len(phone)-4:]
}
