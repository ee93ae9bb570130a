package model

// Contact is the JSON representation of a contact as returned by the REST API.
type Contact struct {
	Id        int64   `json:"id"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Email     string  `json:"email"`
	Phone     string  `json:"phone"`
	Title     *string `json:"title"`
	Filename  *string `json:"filename"`
}
