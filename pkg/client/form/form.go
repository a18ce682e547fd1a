// Package form holds the verification form state on the client: tier and
// method selection, field values, captured images, and schema validation that
// mirrors the server's request validator.
package form

import (
	"strings"
	"sync"

	"github.com/segmentio/ksuid"

	"instantverify/pkg/client/notice"
	domain "instantverify/pkg/domain"
)

// Step is where the user is in the flow, derived from the form's contents.
type Step string

const (
	StepSelectTier     Step = "selecting_tier"
	StepEnterFields    Step = "entering_fields"
	StepCapturePhoto   Step = "capturing_photo"
	StepUploadDocument Step = "uploading_document"
	StepReady          Step = "ready"
	StepSubmitting     Step = "submitting"
)

// Field names used as FieldErrors keys. They match the request JSON.
const (
	FieldPurpose          = "purpose"
	FieldVerificationType = "verificationType"
	FieldAadhaarNumber    = "aadhaarNumber"
	FieldDocumentNumber   = "documentNumber"
)

const recommendation = "Advanced verification provides the most comprehensive and reliable results. " +
	"We recommend using advanced verification for better accuracy."

// FieldErrors maps a field to its first validation message.
type FieldErrors map[string]string

// Values is the submission payload.
type Values struct {
	Purpose          string `json:"purpose"`
	Country          string `json:"country"`
	VerificationType string `json:"verificationType"`
	AadhaarNumber    string `json:"aadhaarNumber,omitempty"`
	DocumentNumber   string `json:"documentNumber"`
	PersonPhoto      string `json:"personPhoto"`
	DocumentImage    string `json:"documentImage"`
}

// Upload is what the document uploader hands back. DocumentNumber is set when
// the number could be read off the image.
type Upload struct {
	Image          string
	DocumentNumber string
}

// Controller is safe for concurrent use; UI callbacks and the submission
// client may touch it from different goroutines.
type Controller struct {
	mu         sync.Mutex
	notices    notice.Publisher
	tier       domain.Tier
	values     Values
	errors     FieldErrors
	submitting bool
	key        string
}

func New(notices notice.Publisher) *Controller {
	if notices == nil {
		notices = notice.Discard
	}
	return &Controller{
		notices: notices,
		tier:    domain.DefaultTier,
		values:  Values{Country: domain.DefaultCountry},
	}
}

func (c *Controller) Tier() domain.Tier {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tier
}

// Methods lists the verification methods offered under the current tier.
func (c *Controller) Methods() []domain.Method {
	return domain.MethodsForTier(c.Tier())
}

// SelectTier switches tabs. Leaving advanced publishes a recommendation but
// never blocks. A chosen method that the new tier does not offer is cleared.
func (c *Controller) SelectTier(t domain.Tier) error {
	if _, err := domain.ParseTier(string(t)); err != nil {
		return err
	}
	c.mu.Lock()
	c.tier = t
	if vt := domain.VerificationType(c.values.VerificationType); vt != "" && vt.Tier() != t {
		c.values.VerificationType = ""
		c.values.AadhaarNumber = ""
	}
	c.changed()
	c.mu.Unlock()

	if t != domain.TierAdvanced {
		c.notices.Publish(notice.Notice{
			Title:       "Recommendation",
			Description: recommendation,
			Variant:     notice.VariantDestructive,
		})
	}
	return nil
}

func (c *Controller) SetPurpose(p string) {
	c.set(func(v *Values) { v.Purpose = p })
}

func (c *Controller) SetCountry(country string) {
	c.set(func(v *Values) { v.Country = country })
}

func (c *Controller) SetVerificationType(t string) {
	c.set(func(v *Values) { v.VerificationType = t })
}

func (c *Controller) SetAadhaarNumber(n string) {
	c.set(func(v *Values) { v.AadhaarNumber = n })
}

func (c *Controller) SetDocumentNumber(n string) {
	c.set(func(v *Values) { v.DocumentNumber = n })
}

// CapturePhoto stores the person photo as inline image data.
func (c *Controller) CapturePhoto(data string) {
	c.set(func(v *Values) { v.PersonPhoto = data })
}

// UploadDocument stores the document image and prefills the number when one
// was read from it.
func (c *Controller) UploadDocument(u Upload) {
	c.set(func(v *Values) {
		v.DocumentImage = u.Image
		if u.DocumentNumber != "" {
			v.DocumentNumber = u.DocumentNumber
		}
	})
}

// NeedsAadhaar reports whether the Aadhaar field should be shown and required.
func (c *Controller) NeedsAadhaar() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.VerificationType(c.values.VerificationType).NeedsAadhaar()
}

// HasImages reports whether both the person photo and document image are present.
func (c *Controller) HasImages() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values.PersonPhoto != "" && c.values.DocumentImage != ""
}

// Validate runs the schema and remembers the result for Errors. It returns
// nil when the fields are valid. Images are checked separately by HasImages.
func (c *Controller) Validate() FieldErrors {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = validate(c.tier, c.values)
	return c.errors
}

// Errors returns the result of the last Validate call.
func (c *Controller) Errors() FieldErrors {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors
}

// Values returns the normalized payload. Aadhaar is omitted for methods that
// do not check it.
func (c *Controller) Values() Values {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.values
	v.Purpose = strings.TrimSpace(v.Purpose)
	v.DocumentNumber = strings.ToUpper(strings.TrimSpace(v.DocumentNumber))
	v.Country = strings.ToUpper(strings.TrimSpace(v.Country))
	if v.Country == "" {
		v.Country = domain.DefaultCountry
	}
	if domain.VerificationType(v.VerificationType).NeedsAadhaar() {
		v.AadhaarNumber = strings.ReplaceAll(strings.TrimSpace(v.AadhaarNumber), " ", "")
	} else {
		v.AadhaarNumber = ""
	}
	return v
}

// IdempotencyKey identifies this exact submission. It stays the same until a
// field changes, so resubmitting after a network failure is collapsed by the server.
func (c *Controller) IdempotencyKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.key == "" {
		c.key = ksuid.New().String()
	}
	return c.key
}

// BeginSubmit marks the form as submitting. It returns false when a
// submission is already in flight.
func (c *Controller) BeginSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitting {
		return false
	}
	c.submitting = true
	return true
}

func (c *Controller) EndSubmit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
}

// Step derives the current step from what has been filled in.
func (c *Controller) Step() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.submitting:
		return StepSubmitting
	case c.values.VerificationType == "":
		return StepSelectTier
	case validate(c.tier, c.values) != nil:
		return StepEnterFields
	case c.values.PersonPhoto == "":
		return StepCapturePhoto
	case c.values.DocumentImage == "":
		return StepUploadDocument
	default:
		return StepReady
	}
}

func (c *Controller) set(fn func(v *Values)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.values)
	c.changed()
}

// changed must be called with mu held.
func (c *Controller) changed() {
	c.key = ""
}

func validate(tier domain.Tier, v Values) FieldErrors {
	errs := FieldErrors{}

	if strings.TrimSpace(v.Purpose) == "" {
		errs[FieldPurpose] = "Purpose is required"
	} else if !domain.Purpose(strings.TrimSpace(v.Purpose)).IsValid() {
		errs[FieldPurpose] = "Invalid purpose"
	}

	vt := domain.VerificationType(v.VerificationType)
	switch m, ok := vt.Method(); {
	case v.VerificationType == "":
		errs[FieldVerificationType] = "Verification type is required"
	case !ok:
		errs[FieldVerificationType] = "Invalid verification type"
	case m.Tier != tier:
		errs[FieldVerificationType] = "Verification type is not offered for this tier"
	}

	if strings.TrimSpace(v.DocumentNumber) == "" {
		errs[FieldDocumentNumber] = "Document number is required"
	}

	if vt.NeedsAadhaar() {
		if _, err := domain.ValidateAadhaarNumber(v.AadhaarNumber); err != nil {
			errs[FieldAadhaarNumber] = err.Error()
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
