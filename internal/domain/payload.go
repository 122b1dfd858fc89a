package domain

// Payload is the record upserted into the remote spreadsheet. It is projected
// into a flat mapping only when serialized; see Fields.
type Payload struct {
	Phone       string
	Brand       string
	Model       string
	City        string
	Year        int
	Budget      int64
	IdentityKey string
	Username    string
	ClientName  string
	ClientLogin string
	Manager     ManagerFlag
	Tag         string
}

// External field names understood by the spreadsheet script.
const (
	FieldPhone       = "phone"
	FieldBrand       = "brand"
	FieldModel       = "model"
	FieldCity        = "city"
	FieldYear        = "year"
	FieldBudget      = "budget"
	FieldIdentityKey = "tg_user_id"
	FieldUsername    = "tg_username"
	FieldClientName  = "client_name"
	FieldClientLogin = "client_login"
	FieldManager     = "manager"
	FieldTag         = "tag"
)

// Fields returns the flat mapping sent to the remote store. Empty strings and
// zero numbers are left out. The identity key is the remote upsert key and is
// kept whenever the payload carries one.
func (p Payload) Fields() map[string]any {
	fields := make(map[string]any, 12)
	putString := func(key, value string) {
		if value != "" {
			fields[key] = value
		}
	}

	putString(FieldPhone, p.Phone)
	putString(FieldBrand, p.Brand)
	putString(FieldModel, p.Model)
	putString(FieldCity, p.City)
	if p.Year != 0 {
		fields[FieldYear] = p.Year
	}
	if p.Budget != 0 {
		fields[FieldBudget] = p.Budget
	}
	if p.IdentityKey != "" {
		fields[FieldIdentityKey] = p.IdentityKey
	}
	putString(FieldUsername, p.Username)
	putString(FieldClientName, p.ClientName)
	putString(FieldClientLogin, p.ClientLogin)
	putString(FieldManager, p.Manager.String())
	putString(FieldTag, p.Tag)

	return fields
}

// IsEmpty reports whether the payload would serialize to an empty document.
func (p Payload) IsEmpty() bool {
	return p == Payload{}
}
