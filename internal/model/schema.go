package model

// Reserved client document / request keys.
const (
	KeyPublicID      = "public_id"
	KeyStatus        = "status"
	KeyConflictToken = "conflictToken"
	KeyPartialUpdate = "isPartialUpdate"
	KeyRSVPSettings  = "rsvpSettings"
	KeyMainEvent     = "mainEvent"
)

// Kind is the accepted JSON shape of a field. Every kind also accepts null.
type Kind int

const (
	KindString     Kind = iota
	KindBool            // true/false
	KindInteger         // number or numeric string, stored as integer
	KindNumber          // any number
	KindObjectList      // array of objects
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindInteger:
		return "integer"
	case KindNumber:
		return "number"
	case KindObjectList:
		return "array of objects"
	}
	return "unknown"
}

// Field maps a request key onto the stored key it writes.
type Field struct {
	RequestKey string
	StoredKey  string
	Kind       Kind
	// Default is written for new documents that do not supply the field.
	Default any
	// OmitByDefault leaves the field unset on new documents instead of writing Default.
	OmitByDefault bool
}

// TopLevelFields are stored as event fields.
var TopLevelFields = []Field{
	{RequestKey: "title", StoredKey: "title", Kind: KindString},
	{RequestKey: "description", StoredKey: "description", Kind: KindString},
	{RequestKey: "startDate", StoredKey: "start_date", Kind: KindString},
	{RequestKey: "endDate", StoredKey: "end_date", Kind: KindString},
	{RequestKey: "maxGuests", StoredKey: "capacity", Kind: KindInteger},
	{RequestKey: "logo_url", StoredKey: "logo_url", Kind: KindString},
}

// DetailsFields are stored inside the details sub-document.
var DetailsFields = []Field{
	{RequestKey: "location", StoredKey: "location", Kind: KindString},
	{RequestKey: "timezone", StoredKey: "timezone", Kind: KindString},
	{RequestKey: "eventType", StoredKey: "event_type", Kind: KindString, Default: "event"},
	{RequestKey: "isPrivate", StoredKey: "is_private", Kind: KindBool, Default: false},
	{RequestKey: "requireRSVP", StoredKey: "require_rsvp", Kind: KindBool, Default: false},
	{RequestKey: "allowPlusOnes", StoredKey: "allow_plus_ones", Kind: KindBool, Default: false},
	{RequestKey: "rsvpDeadline", StoredKey: "rsvp_deadline", Kind: KindString},
	{RequestKey: "whatsappTemplates", StoredKey: "whatsapp_templates", Kind: KindObjectList, OmitByDefault: true},
}

// RSVPFields are the recognized keys of the RSVP settings sub-document.
// They are stored under their request names.
var RSVPFields = []Field{
	{RequestKey: "pageTitle", StoredKey: "pageTitle", Kind: KindString},
	{RequestKey: "subtitle", StoredKey: "subtitle", Kind: KindString},
	{RequestKey: "welcomeMessage", StoredKey: "welcomeMessage", Kind: KindString},
	{RequestKey: "theme", StoredKey: "theme", Kind: KindString},
	{RequestKey: "fontFamily", StoredKey: "fontFamily", Kind: KindString},
	{RequestKey: "backgroundColor", StoredKey: "backgroundColor", Kind: KindString},
	{RequestKey: "textColor", StoredKey: "textColor", Kind: KindString},
	{RequestKey: "primaryColor", StoredKey: "primaryColor", Kind: KindString},
	{RequestKey: "backgroundImage", StoredKey: "backgroundImage", Kind: KindString},
	{RequestKey: "backgroundOverlay", StoredKey: "backgroundOverlay", Kind: KindNumber},
	{RequestKey: "logo", StoredKey: "logo", Kind: KindString},
	{RequestKey: "customQuestions", StoredKey: "customQuestions", Kind: KindObjectList},
}

// MainEventFields are the client-side scalar fields compared one by one by
// the change tracker. Arrays among them are compared and sent wholesale.
var MainEventFields = func() []string {
	out := make([]string, 0, len(TopLevelFields)+len(DetailsFields))
	for _, f := range TopLevelFields {
		out = append(out, f.RequestKey)
	}
	for _, f := range DetailsFields {
		out = append(out, f.RequestKey)
	}
	return out
}()

// Collection names an identity-keyed collection and its identity field.
type Collection struct {
	Name          string
	IdentityField string
}

// Collections lists the identity-keyed collections of an event document.
var Collections = []Collection{
	{Name: "subEvents", IdentityField: "id"},
	{Name: "guestGroups", IdentityField: "id"},
	{Name: "guests", IdentityField: "public_id"},
	{Name: "emailTemplates", IdentityField: "id"},
}

// CollectionByName looks up a collection definition.
func CollectionByName(name string) (Collection, bool) {
	for _, c := range Collections {
		if c.Name == name {
			return c, true
		}
	}
	return Collection{}, false
}
