package pricing

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	pricingsvc "github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type quoteRequest struct {
	ProductID  string  `json:"product_id" validate:"required,uuid"`
	CategoryID *string `json:"category_id" validate:"omitempty,uuid"`
	GatewayID  string  `json:"gateway_id" validate:"omitempty,oneof=stripe square"`
	BasePrice  int64   `json:"base_price" validate:"min=0"`
}

// Quote prices one product against the active rules and, when a gateway is
// named, its fee. Prices are integer cents.
func Quote(svc pricingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req quoteRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := pricingsvc.QuoteInput{
			ProductID:      uuid.MustParse(req.ProductID),
			Gateway:        enums.Gateway(req.GatewayID),
			BasePriceCents: req.BasePrice,
		}
		if req.CategoryID != nil {
			id := uuid.MustParse(*req.CategoryID)
			input.CategoryID = &id
		}

		result, err := svc.Quote(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
