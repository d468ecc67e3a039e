package enum

// ── Group A: State machines (CHECK constrained in DB) ──

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusPreparing BookingStatus = "PREPARING"
	BookingStatusReady     BookingStatus = "READY"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// BookingStatuses lists every status in lifecycle order.
var BookingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusConfirmed,
	BookingStatusPreparing,
	BookingStatusReady,
	BookingStatusCompleted,
	BookingStatusCancelled,
}

// Valid reports whether s is a known booking status.
func (s BookingStatus) Valid() bool {
	for _, v := range BookingStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ParseBookingStatus converts a raw string into a BookingStatus.
func ParseBookingStatus(s string) (BookingStatus, bool) {
	st := BookingStatus(s)
	return st, st.Valid()
}

// ── Group B: Rule keys (CHECK constrained in DB) ──

// MealType is a service window; each one has its own booking rule.
type MealType string

const (
	MealTypeBreakfast MealType = "BREAKFAST"
	MealTypeLunch     MealType = "LUNCH"
	MealTypeDinner    MealType = "DINNER"
	MealTypeSnack     MealType = "SNACK"
)

var MealTypes = []MealType{
	MealTypeBreakfast,
	MealTypeLunch,
	MealTypeDinner,
	MealTypeSnack,
}

func (m MealType) Valid() bool {
	for _, v := range MealTypes {
		if v == m {
			return true
		}
	}
	return false
}

func ParseMealType(s string) (MealType, bool) {
	m := MealType(s)
	return m, m.Valid()
}

// RecipeCategory classifies a dish into a course.
type RecipeCategory string

const (
	RecipeCategoryAppetizer    RecipeCategory = "APPETIZER"
	RecipeCategoryFirstCourse  RecipeCategory = "FIRST_COURSE"
	RecipeCategorySecondCourse RecipeCategory = "SECOND_COURSE"
	RecipeCategorySideDish     RecipeCategory = "SIDE_DISH"
	RecipeCategoryDessert      RecipeCategory = "DESSERT"
	RecipeCategoryBeverage     RecipeCategory = "BEVERAGE"
	RecipeCategoryExtra        RecipeCategory = "EXTRA"
)

// RecipeCategories is in menu order. Validation errors are reported in this order.
var RecipeCategories = []RecipeCategory{
	RecipeCategoryAppetizer,
	RecipeCategoryFirstCourse,
	RecipeCategorySecondCourse,
	RecipeCategorySideDish,
	RecipeCategoryDessert,
	RecipeCategoryBeverage,
	RecipeCategoryExtra,
}

func (c RecipeCategory) Valid() bool {
	for _, v := range RecipeCategories {
		if v == c {
			return true
		}
	}
	return false
}

func ParseRecipeCategory(s string) (RecipeCategory, bool) {
	c := RecipeCategory(s)
	return c, c.Valid()
}

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleSuperAdmin    = "SUPER_ADMIN"
	UserRoleKitchenAdmin  = "KITCHEN_ADMIN"
	UserRoleCustomerAdmin = "CUSTOMER_ADMIN"
	UserRoleEndUser       = "END_USER"
)

// IsValidUserRole reports whether role is one of the four known roles.
func IsValidUserRole(role string) bool {
	switch role {
	case UserRoleSuperAdmin, UserRoleKitchenAdmin, UserRoleCustomerAdmin, UserRoleEndUser:
		return true
	}
	return false
}
