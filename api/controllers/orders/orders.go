package orders

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/orderstate"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const orderIDParam = "orderID"

// Detail returns one order with its items and payment.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := loadVisible(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, NewOrderView(order))
	}
}

// Transitions lists the statuses the order can move to next.
func Transitions(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := loadVisible(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.GetAvailableTransitions(r.Context(), order.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// Audit lists the status history of the order, oldest first.
func Audit(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := loadVisible(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListAudit(r.Context(), order.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newAuditViews(rows))
	}
}

type updateStatusRequest struct {
	Status             string `json:"status" validate:"required,order_status"`
	ExpectedVersion    *int   `json:"expected_version" validate:"omitempty,min=1"`
	CancellationReason string `json:"cancellation_reason" validate:"max=500"`
	DeliveryReason     string `json:"delivery_reason" validate:"max=500"`
	TrackingNumber     string `json:"tracking_number" validate:"max=120"`
	Carrier            string `json:"carrier" validate:"max=120"`
	TrackingURL        string `json:"tracking_url" validate:"omitempty,url,max=500"`
}

// AdminUpdateStatus moves an order through the state machine.
func AdminUpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.PathUUID(r, orderIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req updateStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID.String())
		}
		order, err := svc.UpdateOrderStatus(ctx, internalorders.UpdateStatusInput{
			OrderID:         orderID,
			Status:          enums.OrderStatus(req.Status),
			ExpectedVersion: req.ExpectedVersion,
			Evidence: orderstate.Evidence{
				CancellationReason: validators.SanitizeString(req.CancellationReason, 500),
				DeliveryReason:     validators.SanitizeString(req.DeliveryReason, 500),
				TrackingNumber:     validators.SanitizeString(req.TrackingNumber, 120),
				Carrier:            validators.SanitizeString(req.Carrier, 120),
				TrackingURL:        validators.SanitizeString(req.TrackingURL, 500),
			},
			Actor: adminActor(r),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, NewOrderView(order))
	}
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// AdminReject marks a PENDING order as PAYMENT_REJECTED.
func AdminReject(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.PathUUID(r, orderIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req rejectRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.RejectOrder(r.Context(), internalorders.RejectInput{
			OrderID: orderID,
			Reason:  validators.SanitizeString(req.Reason, 500),
			Actor:   adminActor(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, NewOrderView(order))
	}
}

// loadVisible returns the order when the caller owns it or is an admin. Orders of
// other users read as not found.
func loadVisible(r *http.Request, svc internalorders.Service) (*models.Order, error) {
	orderID, err := validators.PathUUID(r, orderIDParam)
	if err != nil {
		return nil, err
	}
	order, err := svc.GetOrder(r.Context(), orderID)
	if err != nil {
		return nil, err
	}
	if middleware.RoleFromContext(r.Context()) == string(enums.RoleAdmin) {
		return order, nil
	}
	caller := middleware.UserUUIDFromContext(r.Context())
	if caller == uuid.Nil || caller != order.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func adminActor(r *http.Request) string {
	return "admin:" + middleware.UserIDFromContext(r.Context())
}
