package service

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mealdesk/api/internal/auth"
	"github.com/mealdesk/api/internal/database"
	"github.com/mealdesk/api/internal/enum"
)

// CanView reports whether p may read booking b.
func CanView(p auth.Principal, b database.Booking) bool {
	switch p.Role {
	case enum.UserRoleSuperAdmin:
		return true
	case enum.UserRoleKitchenAdmin:
		return p.KitchenID == b.KitchenID
	case enum.UserRoleCustomerAdmin:
		return p.CustomerID == b.CustomerID
	case enum.UserRoleEndUser:
		return p.UserID == b.UserID
	default:
		return false
	}
}

// CanManage reports whether p may drive b through the kitchen workflow.
func CanManage(p auth.Principal, b database.Booking) bool {
	switch p.Role {
	case enum.UserRoleSuperAdmin:
		return true
	case enum.UserRoleKitchenAdmin:
		return p.KitchenID == b.KitchenID
	default:
		return false
	}
}

// ListScope restricts a booking listing to what p may see. Unknown roles
// are scoped to their own user id.
func ListScope(p auth.Principal) database.ListBookingsParams {
	var params database.ListBookingsParams
	switch p.Role {
	case enum.UserRoleSuperAdmin:
	case enum.UserRoleKitchenAdmin:
		params.KitchenID = pgtype.UUID{Bytes: p.KitchenID, Valid: true}
	case enum.UserRoleCustomerAdmin:
		params.CustomerID = pgtype.UUID{Bytes: p.CustomerID, Valid: true}
	default:
		params.UserID = pgtype.UUID{Bytes: p.UserID, Valid: true}
	}
	return params
}
