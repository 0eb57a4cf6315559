// ABOUTME: Request validation with go-playground/validator
// ABOUTME: Status and date tags plus the next-action requirement for active deals
package web

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/harperreed/outreach/models"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	if err := validate.RegisterValidation("status", validateStatus); err != nil {
		panic(fmt.Sprintf("failed to register status validator: %v", err))
	}
	if err := validate.RegisterValidation("date", validateDate); err != nil {
		panic(fmt.Sprintf("failed to register date validator: %v", err))
	}
	validate.RegisterStructValidation(validateActiveDeal, prospectRequest{})
}

func validateStatus(fl validator.FieldLevel) bool {
	return models.Status(fl.Field().String()).Valid()
}

func validateDate(fl validator.FieldLevel) bool {
	_, err := time.Parse(models.DateLayout, fl.Field().String())
	return err == nil
}

// validateActiveDeal requires a recorded next action once a deal is active.
func validateActiveDeal(sl validator.StructLevel) {
	req := sl.Current().Interface().(prospectRequest)
	if !models.Status(req.Status).Active() {
		return
	}
	required := []struct {
		value, json, field string
	}{
		{req.NextAction, "next_action", "NextAction"},
		{req.NextActionDue, "next_action_due_date", "NextActionDue"},
		{req.ActionChannel, "action_channel", "ActionChannel"},
		{req.ActionObjective, "action_objective", "ActionObjective"},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			sl.ReportError(f.value, f.json, f.field, "active_deal", "")
		}
	}
}

// validationError carries a client-facing message.
type validationError struct{ msg string }

func (e validationError) Error() string { return e.msg }

// check validates v and renders failures as one message.
func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return validationError{msg: err.Error()}
	}

	var missing, other []string
	for _, fe := range verrs {
		switch fe.Tag() {
		case "active_deal":
			missing = append(missing, fe.Field())
		case "required":
			other = append(other, fe.Field()+" is required")
		case "status":
			other = append(other, fmt.Sprintf("invalid status %q", fe.Value()))
		case "date":
			other = append(other, fmt.Sprintf("%s must be YYYY-MM-DD", fe.Field()))
		default:
			other = append(other, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	if len(missing) > 0 {
		other = append(other, "Missing required fields for active deal: "+strings.Join(missing, ", "))
	}
	return validationError{msg: strings.Join(other, "; ")}
}
