package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gosimple/slug"

	"github.com/iliyamo/church-events/internal/model"
	"github.com/iliyamo/church-events/internal/repository"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9 ()\-.]{6,32}$`)

// isSlug accepts lower-case ASCII letters, digits, hyphens and underscores
// that neither start nor end with a separator.
var isSlug = validation.By(func(v interface{}) error {
	if s, _ := v.(string); s != "" && !slug.IsSlug(s) {
		return errors.New("must be a lower-case slug")
	}
	return nil
})

// invalid wraps a validation failure so callers can match it with
// errors.Is(err, repository.ErrInvalidInput) and still reach the field map
// with errors.As.
func invalid(err error) error {
	return fmt.Errorf("%w: %w", repository.ErrInvalidInput, err)
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// normalizeDetails trims every field, lower-cases the email and drops
// blank optional values before validating.
func normalizeDetails(d model.RegistrationDetails) (model.RegistrationDetails, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.Phone = strings.TrimSpace(d.Phone)
	d.Organization = trimOptional(d.Organization)
	d.DietaryRestrictions = trimOptional(d.DietaryRestrictions)
	d.AccessibilityNeeds = trimOptional(d.AccessibilityNeeds)

	err := validation.ValidateStruct(&d,
		validation.Field(&d.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&d.Email, validation.Required, validation.Length(3, 255), is.Email),
		validation.Field(&d.Phone, validation.Required, validation.Match(phonePattern)),
		validation.Field(&d.Organization, validation.Length(0, 255)),
		validation.Field(&d.DietaryRestrictions, validation.Length(0, 2000)),
		validation.Field(&d.AccessibilityNeeds, validation.Length(0, 2000)),
	)
	if err != nil {
		return d, invalid(err)
	}
	return d, nil
}

// EventInput carries the admin-editable fields of an event.  Slug is
// derived from Title when left empty.
type EventInput struct {
	Slug        string
	Title       string
	Description string
	Date        string
	Time        string
	Location    string
	Capacity    int
	IsActive    bool
}

func (in *EventInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Date = strings.TrimSpace(in.Date)
	in.Time = strings.TrimSpace(in.Time)
	in.Location = strings.TrimSpace(in.Location)
	in.Slug = strings.TrimSpace(in.Slug)
	if in.Slug == "" {
		in.Slug = Slugify(in.Title)
	}

	err := validation.ValidateStruct(in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.Slug, validation.Required, validation.Length(1, 191), isSlug),
		validation.Field(&in.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&in.Date, validation.Date("2006-01-02")),
		validation.Field(&in.Time, validation.Date("15:04")),
		validation.Field(&in.Location, validation.Length(0, 255)),
	)
	if err != nil {
		return invalid(err)
	}
	return nil
}

// Slugify derives a URL slug from a title.  Accented letters are
// transliterated ("Celebração de Páscoa" becomes "celebracao-de-pascoa").
func Slugify(s string) string {
	return slug.Make(s)
}
