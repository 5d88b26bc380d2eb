package authorization

import (
	"sort"
	"strings"
)

// Permission is a token of the form "<object>:<action>".
type Permission string

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// Objects are the resource halves of permission tokens.
const (
	ObjectUser         = "user"
	ObjectCustomer     = "customer"
	ObjectItem         = "item"
	ObjectInvoice      = "invoice"
	ObjectPayment      = "payment"
	ObjectQuote        = "quote"
	ObjectOrganization = "organization"
	ObjectReport       = "report"
)

const (
	UserView       = Permission(ObjectUser + ":view")
	UserCreate     = Permission(ObjectUser + ":create")
	UserUpdate     = Permission(ObjectUser + ":update")
	UserDeactivate = Permission(ObjectUser + ":deactivate")
	UserActivate   = Permission(ObjectUser + ":activate")

	CustomerCreate = Permission(ObjectCustomer + ":create")
	CustomerUpdate = Permission(ObjectCustomer + ":update")
	CustomerDelete = Permission(ObjectCustomer + ":delete")
	CustomerView   = Permission(ObjectCustomer + ":view")

	ItemCreate = Permission(ObjectItem + ":create")
	ItemUpdate = Permission(ObjectItem + ":update")
	ItemDelete = Permission(ObjectItem + ":delete")
	ItemView   = Permission(ObjectItem + ":view")

	InvoiceCreate = Permission(ObjectInvoice + ":create")
	InvoiceUpdate = Permission(ObjectInvoice + ":update")
	InvoiceDelete = Permission(ObjectInvoice + ":delete")
	InvoiceView   = Permission(ObjectInvoice + ":view")

	PaymentCreate = Permission(ObjectPayment + ":create")
	PaymentDelete = Permission(ObjectPayment + ":delete")
	PaymentView   = Permission(ObjectPayment + ":view")

	QuoteCreate = Permission(ObjectQuote + ":create")
	QuoteUpdate = Permission(ObjectQuote + ":update")
	QuoteDelete = Permission(ObjectQuote + ":delete")
	QuoteView   = Permission(ObjectQuote + ":view")

	OrganizationView   = Permission(ObjectOrganization + ":view")
	OrganizationUpdate = Permission(ObjectOrganization + ":update")

	ReportView = Permission(ObjectReport + ":view")
)

var rolePermissions = map[string][]Permission{
	RoleAdmin: {
		UserView, UserCreate, UserUpdate, UserDeactivate, UserActivate,
		CustomerCreate, CustomerUpdate, CustomerDelete, CustomerView,
		ItemCreate, ItemUpdate, ItemDelete, ItemView,
		InvoiceCreate, InvoiceUpdate, InvoiceDelete, InvoiceView,
		PaymentCreate, PaymentDelete, PaymentView,
		QuoteCreate, QuoteUpdate, QuoteDelete, QuoteView,
		OrganizationView, OrganizationUpdate,
		ReportView,
	},
	RoleStaff: {
		CustomerCreate, CustomerUpdate, CustomerView,
		ItemCreate, ItemUpdate, ItemView,
		InvoiceCreate, InvoiceUpdate, InvoiceView,
		PaymentCreate, PaymentView,
		QuoteCreate, QuoteUpdate, QuoteDelete, QuoteView,
		OrganizationView,
	},
}

// Split returns the object and action halves of the token.
func (p Permission) Split() (object string, action string) {
	object, action, _ = strings.Cut(string(p), ":")
	return object, action
}

func (p Permission) String() string { return string(p) }

// Roles returns the known role names in sorted order.
func Roles() []string {
	roles := make([]string, 0, len(rolePermissions))
	for role := range rolePermissions {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// IsRole reports whether role names a known role.
func IsRole(role string) bool {
	_, ok := rolePermissions[strings.ToLower(strings.TrimSpace(role))]
	return ok
}

// Permissions returns a copy of the role's permission set. Unknown roles have none.
func Permissions(role string) []Permission {
	perms := rolePermissions[strings.ToLower(strings.TrimSpace(role))]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// Allows looks the permission up in the static table.
func Allows(role string, perm Permission) bool {
	for _, p := range rolePermissions[strings.ToLower(strings.TrimSpace(role))] {
		if p == perm {
			return true
		}
	}
	return false
}
