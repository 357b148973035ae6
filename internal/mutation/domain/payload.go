package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	validation "github.com/jellydator/validation"

	"github.com/kiwimedia/agentdesk/internal/errors"
	rules "github.com/kiwimedia/agentdesk/internal/validation"
)

// JobPayload is the envelope stored on a job: the upstream request body plus
// denormalized identifiers used for routing and filtering, and the optional
// operation-request correlation written by the orchestrator fallback path.
type JobPayload struct {
	Request        json.RawMessage `json:"request"`
	CustomerID     *int64          `json:"customerId,omitempty"`
	SubscriptionID *int64          `json:"subscriptionId,omitempty"`
	RequestID      string          `json:"requestId,omitempty"`
	CorrelationID  string          `json:"correlationId,omitempty"`
}

// Recipient identifies the person a signup is for: either an existing person
// id, or enough identity fields to derive a stable ordering key.
type Recipient struct {
	PersonID *int64          `json:"personId,omitempty"`
	Person   *PersonIdentity `json:"person,omitempty"`
}

// PersonIdentity carries the identifying fields of a not-yet-registered person.
type PersonIdentity struct {
	LastName    string `json:"lastName"`
	PostalCode  string `json:"postalCode"`
	HouseNumber string `json:"houseNumber"`
	Birthday    string `json:"birthday"`
}

// Validate checks that the identity fields needed for the ordering key hash
// are present.
func (p PersonIdentity) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.LastName, validation.Required.Error("lastName is required")),
		validation.Field(&p.PostalCode, validation.Required.Error("postalCode is required")),
		validation.Field(&p.HouseNumber, validation.Required.Error("houseNumber is required")),
		validation.Field(&p.Birthday, rules.ISODate),
	)
}

// SignupRequest is the typed payload of a subscription.signup command.
type SignupRequest struct {
	Recipient Recipient `json:"recipient"`
	OfferID   string    `json:"offerId"`
	StartDate string    `json:"startDate,omitempty"`
}

// Validate checks the signup request: an offer, and a resolvable recipient.
func (r SignupRequest) Validate() error {
	if err := validation.ValidateStruct(&r,
		validation.Field(&r.OfferID, validation.Required.Error("offerId is required"), rules.NotBlank),
		validation.Field(&r.StartDate, rules.ISODate),
	); err != nil {
		return err
	}

	if r.Recipient.PersonID != nil {
		return nil
	}
	if r.Recipient.Person == nil {
		return validation.NewError(
			"validation_recipient",
			"recipient must carry a personId or person identity fields",
		)
	}
	return r.Recipient.Person.Validate()
}

// UpdateRequest is the typed payload of a subscription.update command.
type UpdateRequest struct {
	Changes map[string]any `json:"changes"`
	Reason  string         `json:"reason,omitempty"`
}

// Validate requires at least one change field.
func (r UpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Changes, validation.Required.Error("changes is required")),
	)
}

// CancelRequest is the typed payload of a subscription.cancel command.
type CancelRequest struct {
	EndDate string `json:"endDate"`
	Reason  string `json:"reason,omitempty"`
}

// Validate requires the effective end date.
func (r CancelRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.EndDate, validation.Required.Error("endDate is required"), rules.ISODate),
	)
}

// DeceasedActionsRequest is the typed payload of a
// subscription.deceased_actions command.
type DeceasedActionsRequest struct {
	DateOfDeath string   `json:"dateOfDeath"`
	Actions     []string `json:"actions"`
}

// Validate requires the date of death and at least one action.
func (r DeceasedActionsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DateOfDeath, validation.Required.Error("dateOfDeath is required"), rules.ISODate),
		validation.Field(&r.Actions, validation.Required.Error("actions is required")),
	)
}

// ValidatePayload rejects malformed payloads at enqueue time instead of at
// dispatch time: the request body must parse into the typed payload of the
// command, and the denormalized identifiers the dispatch route needs must be
// present.
func ValidatePayload(commandType CommandType, payload JobPayload) error {
	switch commandType {
	case CommandSignup:
		var req SignupRequest
		if err := json.Unmarshal(payload.Request, &req); err != nil {
			return errors.Wrap(ErrInvalidPayload, err.Error())
		}
		if err := req.Validate(); err != nil {
			return errors.Wrap(ErrInvalidPayload, err.Error())
		}

	case CommandUpdate, CommandCancel:
		if payload.CustomerID == nil || payload.SubscriptionID == nil {
			return errors.Wrap(ErrInvalidPayload, "customerId and subscriptionId are required")
		}
		if commandType == CommandUpdate {
			var req UpdateRequest
			if err := json.Unmarshal(payload.Request, &req); err != nil {
				return errors.Wrap(ErrInvalidPayload, err.Error())
			}
			if err := req.Validate(); err != nil {
				return errors.Wrap(ErrInvalidPayload, err.Error())
			}
		} else {
			var req CancelRequest
			if err := json.Unmarshal(payload.Request, &req); err != nil {
				return errors.Wrap(ErrInvalidPayload, err.Error())
			}
			if err := req.Validate(); err != nil {
				return errors.Wrap(ErrInvalidPayload, err.Error())
			}
		}

	case CommandDeceasedActions:
		if payload.CustomerID == nil {
			return errors.Wrap(ErrInvalidPayload, "customerId is required")
		}
		var req DeceasedActionsRequest
		if err := json.Unmarshal(payload.Request, &req); err != nil {
			return errors.Wrap(ErrInvalidPayload, err.Error())
		}
		if err := req.Validate(); err != nil {
			return errors.Wrap(ErrInvalidPayload, err.Error())
		}

	default:
		return ErrUnknownCommandType
	}

	return nil
}

// BuildOrderingKey derives the key that serializes jobs touching the same
// logical entity. Jobs with a customer id share "customer:<id>"; a signup for
// a not-yet-registered person falls back to a hash of its identity fields.
func BuildOrderingKey(commandType CommandType, payload JobPayload) (string, error) {
	if payload.CustomerID != nil {
		return fmt.Sprintf("customer:%d", *payload.CustomerID), nil
	}

	if commandType != CommandSignup {
		return "", errors.Wrap(ErrInvalidPayload, "customerId is required to derive ordering key")
	}

	var req SignupRequest
	if err := json.Unmarshal(payload.Request, &req); err != nil {
		return "", errors.Wrap(ErrInvalidPayload, err.Error())
	}

	if req.Recipient.PersonID != nil {
		return fmt.Sprintf("customer:%d", *req.Recipient.PersonID), nil
	}
	if req.Recipient.Person == nil {
		return "", errors.Wrap(ErrInvalidPayload, "recipient must carry a personId or person identity fields")
	}

	person := req.Recipient.Person
	seed := strings.Join([]string{
		strings.ToLower(strings.TrimSpace(person.LastName)),
		strings.ToUpper(strings.TrimSpace(person.PostalCode)),
		strings.TrimSpace(person.HouseNumber),
		strings.TrimSpace(person.Birthday),
	}, "|")

	sum := sha256.Sum256([]byte(seed))
	return "identity:" + hex.EncodeToString(sum[:]), nil
}

// CanonicalRequestHash hashes the canonical JSON form of a request body:
// object keys sorted, no insignificant whitespace. Two differently formatted
// bodies with the same content produce the same hash.
func CanonicalRequestHash(request json.RawMessage) (string, error) {
	var decoded any
	if err := json.Unmarshal(request, &decoded); err != nil {
		return "", errors.Wrap(ErrInvalidPayload, err.Error())
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(decoded); err != nil {
		return "", errors.Wrap(ErrInvalidPayload, err.Error())
	}

	sum := sha256.Sum256(bytes.TrimRight(buf.Bytes(), "\n"))
	return hex.EncodeToString(sum[:]), nil
}
