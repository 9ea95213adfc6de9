package payment

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ErrUnknownPlan is returned for plan types outside the catalog
var ErrUnknownPlan = errors.New("unknown plan")

// Plan is a purchasable follow-up period
type Plan struct {
	Type        string
	Name        string
	Days        int
	Price       float64
	Description string
}

// Plans is the catalog shown to patients, cheapest first
var Plans = []Plan{
	{Type: "monthly", Name: "Plano Mensal", Days: 30, Price: 150, Description: "Acompanhamento nutricional por 30 dias"},
	{Type: "quarterly", Name: "Plano Trimestral", Days: 90, Price: 400, Description: "Acompanhamento nutricional por 90 dias (desconto de 11%)"},
	{Type: "semiannual", Name: "Plano Semestral", Days: 180, Price: 750, Description: "Acompanhamento nutricional por 180 dias (desconto de 17%)"},
}

// PlanByType looks a plan up by its type
func PlanByType(planType string) (Plan, error) {
	for _, p := range Plans {
		if p.Type == planType {
			return p, nil
		}
	}
	return Plan{}, fmt.Errorf("%w: %s", ErrUnknownPlan, planType)
}

// FormatPrice renders a price in reais, e.g. "R$ 150,00"
func FormatPrice(v float64) string {
	return "R$ " + strings.Replace(fmt.Sprintf("%.2f", v), ".", ",", 1)
}

// NewExternalRef builds the reference sent to the gateway: <telegramID>_<uuid>
func NewExternalRef(telegramID int64) string {
	return fmt.Sprintf("%d_%s", telegramID, uuid.NewString())
}

// TelegramIDFromRef extracts the patient id from an external reference
func TelegramIDFromRef(ref string) (int64, error) {
	idPart, _, ok := strings.Cut(ref, "_")
	if !ok {
		return 0, fmt.Errorf("malformed external reference %q", ref)
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed external reference %q: %w", ref, err)
	}
	return id, nil
}
