package saga

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/harborline-tours/service-payments/internal/adapter"
	"github.com/harborline-tours/service-payments/internal/domain/payment"
)

// Step is a single saga step with an execute action and an optional
// compensating action.
type Step struct {
	Name       string
	Execute    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Saga orchestrates a sequence of steps with compensating transactions on
// failure.
type Saga struct {
	name   string
	steps  []Step
	logger *zap.Logger
}

// New creates a saga orchestrator.
func New(name string, logger *zap.Logger) *Saga {
	return &Saga{
		name:   name,
		steps:  make([]Step, 0),
		logger: logger,
	}
}

// AddStep appends a step to the saga.
func (s *Saga) AddStep(step Step) {
	s.steps = append(s.steps, step)
}

// Execute runs all steps in order. On failure, it compensates the executed
// steps in reverse order; compensation failures are logged, not returned.
func (s *Saga) Execute(ctx context.Context) error {
	s.logger.Info("saga started", zap.String("saga", s.name))

	executed := make([]Step, 0, len(s.steps))

	for _, step := range s.steps {
		s.logger.Info("executing saga step",
			zap.String("saga", s.name),
			zap.String("step", step.Name),
		)

		if err := step.Execute(ctx); err != nil {
			s.logger.Error("saga step failed, starting compensation",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Error(err),
			)

			for i := len(executed) - 1; i >= 0; i-- {
				comp := executed[i]
				if comp.Compensate == nil {
					continue
				}
				s.logger.Info("compensating saga step",
					zap.String("saga", s.name),
					zap.String("step", comp.Name),
				)
				if compErr := comp.Compensate(ctx); compErr != nil {
					s.logger.Error("compensation failed",
						zap.String("saga", s.name),
						zap.String("step", comp.Name),
						zap.Error(compErr),
					)
				}
			}

			return fmt.Errorf("saga '%s' failed at step '%s': %w", s.name, step.Name, err)
		}

		executed = append(executed, step)
	}

	s.logger.Info("saga completed", zap.String("saga", s.name))
	return nil
}

// PaymentIntentSagaService creates a payment record together with its gateway
// customer and intent, compensating both sides when either fails. Used for
// the original booking charge and for edit upcharges.
type PaymentIntentSagaService struct {
	payments payment.Repository
	stripe   adapter.StripeAdapter
	logger   *zap.Logger
}

// NewPaymentIntentSagaService creates a PaymentIntentSagaService.
func NewPaymentIntentSagaService(payments payment.Repository, stripe adapter.StripeAdapter, logger *zap.Logger) *PaymentIntentSagaService {
	return &PaymentIntentSagaService{
		payments: payments,
		stripe:   stripe,
		logger:   logger,
	}
}

// CreateIntentSaga persists the pending payment, creates the gateway customer
// and intent, and attaches the intent ID to the record. Returns the client
// secret the storefront needs to confirm the charge.
func (s *PaymentIntentSagaService) CreateIntentSaga(ctx context.Context, p *payment.Payment, customerEmail, customerName string) (string, error) {
	var (
		paymentIntentID string
		clientSecret    string
	)

	sg := New("create_payment_intent", s.logger)

	// Step 1: save the pending payment record.
	sg.AddStep(Step{
		Name: "save_payment",
		Execute: func(ctx context.Context) error {
			return s.payments.Save(ctx, p)
		},
		Compensate: func(ctx context.Context) error {
			_ = p.MarkFailed("saga compensation: intent creation failed")
			p.IncrementVersion()
			return s.payments.Update(ctx, p)
		},
	})

	// Step 2: create the gateway customer and intent.
	sg.AddStep(Step{
		Name: "create_gateway_intent",
		Execute: func(ctx context.Context) error {
			customerID, err := s.stripe.CreateCustomer(ctx, customerEmail, customerName)
			if err != nil {
				return err
			}
			paymentIntentID, clientSecret, err = s.stripe.CreatePaymentIntent(ctx, p.AmountCents(), p.Currency(), customerID)
			return err
		},
		Compensate: func(ctx context.Context) error {
			if paymentIntentID != "" {
				return s.stripe.CancelPaymentIntent(ctx, paymentIntentID)
			}
			return nil
		},
	})

	// Step 3: attach the intent to the payment record.
	sg.AddStep(Step{
		Name: "attach_intent",
		Execute: func(ctx context.Context) error {
			if err := p.AttachIntent(paymentIntentID); err != nil {
				return err
			}
			p.IncrementVersion()
			return s.payments.Update(ctx, p)
		},
		Compensate: func(ctx context.Context) error {
			_ = s.stripe.CancelPaymentIntent(ctx, paymentIntentID)
			_ = p.MarkFailed("saga compensation: attaching intent failed")
			p.IncrementVersion()
			return s.payments.Update(ctx, p)
		},
	})

	if err := sg.Execute(ctx); err != nil {
		return "", err
	}

	return clientSecret, nil
}
