// Package authority adapts the hospital prescription authority to the
// normalized prescription shape used by the transaction service.
package authority

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"transaction-service/internal/graphql"
	"transaction-service/internal/models"
	"transaction-service/internal/util"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// ErrUnreachable wraps every failure to obtain an answer from the authority
var ErrUnreachable = errors.New("prescription authority unreachable")

// MatchStrategy decides how prescribed lines are later resolved against the catalog
type MatchStrategy string

const (
	MatchByName MatchStrategy = "name"
	MatchByID   MatchStrategy = "id"
)

const validateByNameQuery = `query ValidatePrescription($id: String!) {
  validatePrescription(id: $id) {
    isValid
    patientName
    medicines { name qty }
  }
}`

const validateByIDQuery = `query ValidatePrescription($id: String!) {
  validatePrescription(id: $id) {
    isValid
    patientName
    medicines { medicineId qty }
  }
}`

// Client talks to the prescription authority
type Client struct {
	gql      *graphql.Client
	strategy MatchStrategy
	logger   *zap.Logger
}

// ParseMatchStrategy maps a config value to a strategy, defaulting to name
func ParseMatchStrategy(raw string) MatchStrategy {
	if strings.EqualFold(strings.TrimSpace(raw), string(MatchByID)) {
		return MatchByID
	}
	return MatchByName
}

// NewClient creates an authority client for the GraphQL endpoint at url
func NewClient(url string, timeout time.Duration, strategy MatchStrategy) *Client {
	return &Client{
		gql:      graphql.NewClient("authority", url, timeout),
		strategy: strategy,
		logger:   util.GetLogger(),
	}
}

// Validate asks the authority about a prescription. An unknown id is reported
// as an invalid prescription, not as an error.
func (c *Client) Validate(ctx context.Context, prescriptionID string) (*models.Prescription, error) {
	ctx, span := util.StartSpan(ctx, "AuthorityClient.Validate")
	defer span.End()

	query := validateByNameQuery
	if c.strategy == MatchByID {
		query = validateByIDQuery
	}

	data, err := c.gql.Do(ctx, "validatePrescription", query, map[string]interface{}{"id": prescriptionID}, "")
	if err != nil {
		c.logger.Warn("Prescription validation call failed",
			zap.String("prescription_id", prescriptionID),
			zap.Error(err))
		util.FailSpan(span, err)
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return c.decode(prescriptionID, data.Get("validatePrescription")), nil
}

func (c *Client) decode(prescriptionID string, v gjson.Result) *models.Prescription {
	p := &models.Prescription{ID: prescriptionID}
	if !v.Exists() || v.Type == gjson.Null || !v.Get("isValid").Bool() {
		return p
	}

	p.PatientName = v.Get("patientName").String()

	for _, m := range v.Get("medicines").Array() {
		line := models.PrescriptionLine{Quantity: int(m.Get("qty").Int())}
		if c.strategy == MatchByID {
			line.CatalogID = strings.TrimSpace(m.Get("medicineId").String())
		} else {
			line.Name = strings.TrimSpace(m.Get("name").String())
		}

		if line.Quantity < 0 || line.Label() == "" {
			c.logger.Warn("Authority returned a malformed prescription line",
				zap.String("prescription_id", prescriptionID),
				zap.String("line", m.Raw))
			return &models.Prescription{ID: prescriptionID}
		}
		p.Lines = append(p.Lines, line)
	}

	p.Valid = true
	return p
}
