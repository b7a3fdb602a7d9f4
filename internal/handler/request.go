package handler

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/iliyamo/church-events/internal/model"
	"github.com/iliyamo/church-events/internal/service"
)

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req *loginReq) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Email, validation.Required, is.Email),
		validation.Field(&req.Password, validation.Required),
	)
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

// registrationReq is the public admission body.
type registrationReq struct {
	Name                string  `json:"name"`
	Email               string  `json:"email"`
	Phone               string  `json:"phone"`
	Organization        *string `json:"organization"`
	DietaryRestrictions *string `json:"dietary_restrictions"`
	AccessibilityNeeds  *string `json:"accessibility_needs"`
}

func (req registrationReq) details() model.RegistrationDetails {
	return model.RegistrationDetails{
		Name:                req.Name,
		Email:               req.Email,
		Phone:               req.Phone,
		Organization:        req.Organization,
		DietaryRestrictions: req.DietaryRestrictions,
		AccessibilityNeeds:  req.AccessibilityNeeds,
	}
}

type statusReq struct {
	Status string `json:"status"`
}

// eventReq is the admin create/update body.  IsActive defaults to true
// when omitted.
type eventReq struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location"`
	Capacity    int    `json:"capacity"`
	IsActive    *bool  `json:"is_active"`
}

func (req eventReq) input() service.EventInput {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return service.EventInput{
		Slug:        req.Slug,
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		Time:        req.Time,
		Location:    req.Location,
		Capacity:    req.Capacity,
		IsActive:    active,
	}
}
