package model

// Contact is the data structure for a person that we know.
// FirstName, LastName, Email and Phone are required. Title and Filename are nil when not set;
// Filename names the contact's image in the file store.
type Contact struct {
	Id        int64   `json:"id"        db:"id"`
	FirstName string  `json:"firstName" db:"firstname"`
	LastName  string  `json:"lastName"  db:"lastname"`
	Email     string  `json:"email"     db:"email"`
	Phone     string  `json:"phone"     db:"phone"`
	Title     *string `json:"title"     db:"title"`
	Filename  *string `json:"filename"  db:"filename"`
}

// HasImage reports whether an image is attached to the contact.
func (c *Contact) HasImage() bool {
	return c.Filename != nil && *c.Filename != ""
}
