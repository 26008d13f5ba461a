package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/neomorfeo/sellerhub/internal/domain"
)

// RegisterInput is the data collected by the seller registration form.
type RegisterInput struct {
	Email          string `json:"email" validate:"required,email,max=255"`
	FirstName      string `json:"first_name" validate:"required,max=100"`
	LastName       string `json:"last_name" validate:"required,max=100"`
	Password       string `json:"password" validate:"required,min=8,max=72"`
	TaxID          string `json:"tax_id" validate:"required,max=255"`
	BankAccountRef string `json:"bank_account_ref" validate:"required,max=255"`
	ShopName       string `json:"shop_name,omitempty" validate:"omitempty,max=255"`
}

// RegistrationService creates sellers and their owning administrators.
type RegistrationService struct {
	uow      domain.UnitOfWork
	notifier domain.Notifier
	validate *validator.Validate
	logger   *slog.Logger
	hashCost int
}

// RegistrationOption configures a RegistrationService.
type RegistrationOption func(*RegistrationService)

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) RegistrationOption {
	return func(s *RegistrationService) {
		s.hashCost = cost
	}
}

// NewRegistrationService creates a registration service with the given adapters.
func NewRegistrationService(uow domain.UnitOfWork, notifier domain.Notifier, logger *slog.Logger, opts ...RegistrationOption) *RegistrationService {
	s := &RegistrationService{
		uow:      uow,
		notifier: notifier,
		validate: newValidator(),
		logger:   logger,
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an administrator with no roles and a seller awaiting bank
// validation, atomically. No channel, role or stock location is created here.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput) (domain.Seller, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.TaxID = strings.TrimSpace(input.TaxID)
	input.BankAccountRef = strings.TrimSpace(input.BankAccountRef)
	input.ShopName = strings.TrimSpace(input.ShopName)

	if err := s.validate.Struct(input); err != nil {
		return domain.Seller{}, toValidationError(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.hashCost)
	if err != nil {
		return domain.Seller{}, fmt.Errorf("hashing password: %w", err)
	}

	admin := domain.Administrator{
		ID:                newID(),
		Email:             input.Email,
		FirstName:         input.FirstName,
		LastName:          input.LastName,
		PasswordHash:      string(hash),
		VerificationToken: newToken(),
	}
	seller := domain.NewSeller(newID(), admin.FullName(), input.TaxID, input.BankAccountRef, admin.ID)
	seller.ShopName = input.ShopName
	admin.CreatedAt = seller.CreatedAt

	err = s.uow.Do(ctx, func(stores domain.Stores) error {
		if _, err := stores.Identity.GetAdminByEmail(ctx, admin.Email); err == nil {
			return &domain.EmailConflictError{Email: admin.Email}
		} else if !errors.Is(err, domain.ErrAdminNotFound) {
			return fmt.Errorf("checking email: %w", err)
		}

		if err := stores.Identity.CreateAdmin(ctx, admin); err != nil {
			return fmt.Errorf("creating administrator: %w", err)
		}
		if err := stores.Sellers.Create(ctx, seller); err != nil {
			return fmt.Errorf("creating seller: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Seller{}, err
	}

	s.logger.InfoContext(ctx, "seller registered",
		"seller_id", seller.ID,
		"admin_id", admin.ID,
	)

	notifyErr := s.notifier.Publish(ctx, domain.Notification{
		Kind:              domain.NotificationAccountRegistered,
		SellerID:          seller.ID,
		SellerName:        seller.Name,
		AdminID:           admin.ID,
		Email:             admin.Email,
		VerificationToken: admin.VerificationToken,
	})
	if notifyErr != nil {
		s.logger.WarnContext(ctx, "verification email not queued",
			"seller_id", seller.ID,
			"error", &domain.NotificationDeliveryError{Kind: domain.NotificationAccountRegistered, Err: notifyErr},
		)
	}

	return seller, nil
}

// VerifyEmail confirms the email address of the administrator the token was
// mailed to. A token works once.
func (s *RegistrationService) VerifyEmail(ctx context.Context, token string) (domain.Administrator, error) {
	token = strings.TrimSpace(token)

	var admin domain.Administrator
	err := s.uow.Do(ctx, func(stores domain.Stores) error {
		var err error
		admin, err = stores.Identity.VerifyAdmin(ctx, token)
		return err
	})
	if err != nil {
		return domain.Administrator{}, err
	}

	s.logger.InfoContext(ctx, "administrator email verified", "admin_id", admin.ID)
	return admin, nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// toValidationError reports the first failing field as a domain.ValidationError.
func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &domain.ValidationError{Field: "input", Reason: err.Error()}
	}

	fe := fieldErrs[0]
	var reason string
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "email":
		reason = "must be a valid email address"
	case "min":
		reason = fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		reason = fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		reason = "failed " + fe.Tag() + " check"
	}
	return &domain.ValidationError{Field: fe.Field(), Reason: reason}
}
