package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/sellerhub/internal/app"
	"github.com/neomorfeo/sellerhub/internal/domain"
)

const timeFormat = "2006-01-02T15:04:05Z"

// SellerResponse is the API representation of a seller.
type SellerResponse struct {
	ID             string `json:"id" doc:"Unique identifier"`
	Name           string `json:"name" doc:"Display name"`
	ShopName       string `json:"shop_name,omitempty" doc:"Shop name shown to buyers"`
	TaxID          string `json:"tax_id" doc:"Tax identifier"`
	BankAccountRef string `json:"bank_account_ref" doc:"Bank account reference"`
	BankValidated  bool   `json:"bank_validated" doc:"Whether the bank has approved the seller"`
	LinkedAdminID  string `json:"linked_admin_id" doc:"Administrator owning the seller account"`
	Status         string `json:"status" doc:"Lifecycle state"`
	CreatedAt      string `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt      string `json:"updated_at" doc:"Last update timestamp (ISO 8601)"`
}

func toSellerResponse(s domain.Seller) SellerResponse {
	return SellerResponse{
		ID:             s.ID,
		Name:           s.Name,
		ShopName:       s.ShopName,
		TaxID:          s.TaxID,
		BankAccountRef: s.BankAccountRef,
		BankValidated:  s.BankValidated,
		LinkedAdminID:  s.LinkedAdminID,
		Status:         string(s.Status),
		CreatedAt:      s.CreatedAt.Format(timeFormat),
		UpdatedAt:      s.UpdatedAt.Format(timeFormat),
	}
}

// ProvisioningResponse is the API representation of a provisioning trail.
type ProvisioningResponse struct {
	SellerID        string `json:"seller_id"`
	ChannelID       string `json:"channel_id,omitempty"`
	RoleID          string `json:"role_id,omitempty"`
	AdminID         string `json:"admin_id,omitempty"`
	StockLocationID string `json:"stock_location_id,omitempty"`
	LastStep        string `json:"last_step" doc:"Last step attempted"`
	LastError       string `json:"last_error,omitempty" doc:"Error of the last step, if it failed"`
	Attempts        int    `json:"attempts" doc:"Number of provisioning runs"`
	Completed       bool   `json:"completed"`
	CompletedAt     string `json:"completed_at,omitempty"`
	UpdatedAt       string `json:"updated_at"`
}

func toProvisioningResponse(r domain.ProvisioningRecord) ProvisioningResponse {
	resp := ProvisioningResponse{
		SellerID:        r.SellerID,
		ChannelID:       r.ChannelID,
		RoleID:          r.RoleID,
		AdminID:         r.AdminID,
		StockLocationID: r.StockLocationID,
		LastStep:        string(r.LastStep),
		LastError:       r.LastError,
		Attempts:        r.Attempts,
		Completed:       r.Completed(),
		UpdatedAt:       r.UpdatedAt.Format(timeFormat),
	}
	if r.CompletedAt != nil {
		resp.CompletedAt = r.CompletedAt.Format(timeFormat)
	}
	return resp
}

// ChannelResponse omits the channel token, which grants storefront access.
type ChannelResponse struct {
	ID               string `json:"id"`
	Code             string `json:"code"`
	CurrencyCode     string `json:"currency_code"`
	LanguageCode     string `json:"language_code"`
	PricesIncludeTax bool   `json:"prices_include_tax"`
	DefaultZoneID    string `json:"default_zone_id"`
}

type RoleResponse struct {
	ID          string   `json:"id"`
	Code        string   `json:"code"`
	Permissions []string `json:"permissions"`
	ChannelIDs  []string `json:"channel_ids"`
}

type StockLocationResponse struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	ChannelIDs []string `json:"channel_ids"`
}

// AccessResponse lists what provisioning has created for a seller.
type AccessResponse struct {
	SellerID      string                 `json:"seller_id"`
	Status        string                 `json:"status"`
	Channel       *ChannelResponse       `json:"channel,omitempty"`
	Role          *RoleResponse          `json:"role,omitempty"`
	StockLocation *StockLocationResponse `json:"stock_location,omitempty"`
}

func toAccessResponse(a app.SellerAccess) AccessResponse {
	resp := AccessResponse{SellerID: a.Seller.ID, Status: string(a.Seller.Status)}
	if c := a.Channel; c != nil {
		resp.Channel = &ChannelResponse{
			ID:               c.ID,
			Code:             c.Code,
			CurrencyCode:     c.CurrencyCode,
			LanguageCode:     c.LanguageCode,
			PricesIncludeTax: c.PricesIncludeTax,
			DefaultZoneID:    c.DefaultShippingZoneID,
		}
	}
	if r := a.Role; r != nil {
		perms := make([]string, len(r.Permissions))
		for i, p := range r.Permissions {
			perms[i] = string(p)
		}
		resp.Role = &RoleResponse{ID: r.ID, Code: r.Code, Permissions: perms, ChannelIDs: r.ChannelIDs}
	}
	if l := a.StockLocation; l != nil {
		resp.StockLocation = &StockLocationResponse{ID: l.ID, Name: l.Name, ChannelIDs: l.ChannelIDs}
	}
	return resp
}

// --- Register Seller ---

type RegisterSellerInput struct {
	Body app.RegisterInput
}

type RegisterSellerOutput struct {
	Body SellerResponse
}

// --- Verify Email ---

type VerifyEmailInput struct {
	Body struct {
		Token string `json:"token" minLength:"1" doc:"Verification code from the registration mail"`
	}
}

// AdministratorResponse is the API representation of a seller's administrator.
type AdministratorResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	VerifiedAt string `json:"verified_at,omitempty"`
}

type VerifyEmailOutput struct {
	Body AdministratorResponse
}

// --- Get Seller ---

type GetSellerInput struct {
	ID string `path:"id" doc:"Seller ID"`
}

type GetSellerOutput struct {
	Body SellerResponse
}

// --- List Sellers ---

type ListSellersInput struct {
	Status        string `query:"status" required:"false" enum:"registered,provisioned" doc:"Filter by status"`
	BankValidated string `query:"bank_validated" required:"false" enum:"true,false" doc:"Filter by bank approval"`
	Limit         int    `query:"limit" required:"false" default:"50" minimum:"0" maximum:"500" doc:"Max results"`
	Offset        int    `query:"offset" required:"false" default:"0" minimum:"0" doc:"Pagination offset"`
}

type ListSellersOutput struct {
	Body []SellerResponse
}

// --- Bank Validation ---

type BankValidationInput struct {
	Authorization string `header:"Authorization" required:"false" doc:"Bearer token of the caller"`
	ID            string `path:"id" doc:"Seller ID"`
	Body          struct {
		Validated bool `json:"validated" doc:"Bank decision; approval cannot be revoked"`
	}
}

type BankValidationOutput struct {
	Body SellerResponse
}

// --- Provisioning ---

type RequestProvisioningInput struct {
	Authorization string `header:"Authorization" required:"false" doc:"Bearer token of the caller"`
	ID            string `path:"id" doc:"Seller ID"`
}

type RequestProvisioningOutput struct {
	Body SellerResponse
}

type GetProvisioningInput struct {
	ID string `path:"id" doc:"Seller ID"`
}

type GetProvisioningOutput struct {
	Body ProvisioningResponse
}

type GetAccessInput struct {
	ID string `path:"id" doc:"Seller ID"`
}

type GetAccessOutput struct {
	Body AccessResponse
}

// Services are the application services behind the API.
type Services struct {
	Registration *app.RegistrationService
	Sellers      *app.SellerService
	Access       *app.AccessService
	Tokens       TokenDirectory
}

// Register adds all seller API routes to the Huma API.
func Register(api huma.API, svc Services) {
	huma.Register(api, huma.Operation{
		OperationID: "register-seller",
		Method:      http.MethodPost,
		Path:        "/api/v1/sellers/register",
		Summary:     "Register a seller account",
		Tags:        []string{"Sellers"},
	}, func(ctx context.Context, input *RegisterSellerInput) (*RegisterSellerOutput, error) {
		seller, err := svc.Registration.Register(ctx, input.Body)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &RegisterSellerOutput{Body: toSellerResponse(seller)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "verify-email",
		Method:      http.MethodPost,
		Path:        "/api/v1/sellers/verify-email",
		Summary:     "Confirm a seller administrator's email address",
		Tags:        []string{"Sellers"},
	}, func(ctx context.Context, input *VerifyEmailInput) (*VerifyEmailOutput, error) {
		admin, err := svc.Registration.VerifyEmail(ctx, input.Body.Token)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := AdministratorResponse{ID: admin.ID, Email: admin.Email}
		if admin.VerifiedAt != nil {
			resp.VerifiedAt = admin.VerifiedAt.Format(timeFormat)
		}
		return &VerifyEmailOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-seller",
		Method:      http.MethodGet,
		Path:        "/api/v1/sellers/{id}",
		Summary:     "Get a seller by ID",
		Tags:        []string{"Sellers"},
	}, func(ctx context.Context, input *GetSellerInput) (*GetSellerOutput, error) {
		seller, err := svc.Sellers.GetByID(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetSellerOutput{Body: toSellerResponse(seller)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-sellers",
		Method:      http.MethodGet,
		Path:        "/api/v1/sellers",
		Summary:     "List sellers",
		Tags:        []string{"Sellers"},
	}, func(ctx context.Context, input *ListSellersInput) (*ListSellersOutput, error) {
		filter := domain.ListFilter{
			Limit:  input.Limit,
			Offset: input.Offset,
		}
		if input.Status != "" {
			s := domain.Status(input.Status)
			filter.Status = &s
		}
		if input.BankValidated != "" {
			v := input.BankValidated == "true"
			filter.BankValidated = &v
		}

		sellers, err := svc.Sellers.List(ctx, filter)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]SellerResponse, len(sellers))
		for i, s := range sellers {
			resp[i] = toSellerResponse(s)
		}
		return &ListSellersOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-bank-validation",
		Method:      http.MethodPut,
		Path:        "/api/v1/sellers/{id}/bank-validation",
		Summary:     "Record the bank's decision on a seller",
		Description: "Approving a seller schedules provisioning of its channel, role and stock location.",
		Tags:        []string{"Sellers"},
	}, func(ctx context.Context, input *BankValidationInput) (*BankValidationOutput, error) {
		caller, err := svc.Tokens.Resolve(input.Authorization)
		if err != nil {
			return nil, huma.Error401Unauthorized(err.Error())
		}

		seller, err := svc.Sellers.SetBankValidation(ctx, caller, input.ID, input.Body.Validated)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &BankValidationOutput{Body: toSellerResponse(seller)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "request-provisioning",
		Method:        http.MethodPost,
		Path:          "/api/v1/sellers/{id}/provisioning",
		Summary:       "Schedule another provisioning run",
		Tags:          []string{"Provisioning"},
		DefaultStatus: http.StatusAccepted,
	}, func(ctx context.Context, input *RequestProvisioningInput) (*RequestProvisioningOutput, error) {
		caller, err := svc.Tokens.Resolve(input.Authorization)
		if err != nil {
			return nil, huma.Error401Unauthorized(err.Error())
		}

		seller, err := svc.Sellers.RequestProvisioning(ctx, caller, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &RequestProvisioningOutput{Body: toSellerResponse(seller)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-provisioning",
		Method:      http.MethodGet,
		Path:        "/api/v1/sellers/{id}/provisioning",
		Summary:     "Get the provisioning trail of a seller",
		Tags:        []string{"Provisioning"},
	}, func(ctx context.Context, input *GetProvisioningInput) (*GetProvisioningOutput, error) {
		rec, err := svc.Access.Provisioning(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetProvisioningOutput{Body: toProvisioningResponse(rec)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-access",
		Method:      http.MethodGet,
		Path:        "/api/v1/sellers/{id}/access",
		Summary:     "Get the channel, role and stock location of a seller",
		Tags:        []string{"Provisioning"},
	}, func(ctx context.Context, input *GetAccessInput) (*GetAccessOutput, error) {
		access, err := svc.Access.Access(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetAccessOutput{Body: toAccessResponse(access)}, nil
	})
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	if errors.Is(err, domain.ErrSellerNotFound) {
		return huma.Error404NotFound("seller not found")
	}
	if errors.Is(err, domain.ErrProvisioningNotFound) {
		return huma.Error404NotFound("seller has not been provisioned yet")
	}
	if errors.Is(err, domain.ErrVerificationTokenInvalid) {
		return huma.Error400BadRequest(err.Error())
	}

	var valErr *domain.ValidationError
	if errors.As(err, &valErr) {
		return huma.Error422UnprocessableEntity(valErr.Error(), &huma.ErrorDetail{
			Location: "body." + valErr.Field,
			Message:  valErr.Reason,
		})
	}

	var emailErr *domain.EmailConflictError
	if errors.As(err, &emailErr) {
		return huma.Error409Conflict(emailErr.Error())
	}

	var denied *domain.PermissionDeniedError
	if errors.As(err, &denied) {
		return huma.Error403Forbidden(denied.Error())
	}

	if errors.Is(err, domain.ErrBankValidationIrreversible) || errors.Is(err, domain.ErrNotBankValidated) {
		return huma.Error409Conflict(err.Error())
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}

// HealthOutput reports liveness.
type HealthOutput struct {
	Body struct {
		Status string `json:"status"`
		Time   string `json:"time"`
	}
}

// RegisterHealth adds the liveness probe.
func RegisterHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/healthz",
		Summary:     "Liveness probe",
		Tags:        []string{"Health"},
	}, func(_ context.Context, _ *struct{}) (*HealthOutput, error) {
		out := &HealthOutput{}
		out.Body.Status = "ok"
		out.Body.Time = time.Now().UTC().Format(timeFormat)
		return out, nil
	})
}
