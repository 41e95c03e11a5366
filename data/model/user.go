package model

// User is the directory projection of an identity, used to enrich
// broadcast payloads. The directory is an external collaborator; the
// engine never mutates users.
type User struct {
	ID          string `json:"id" bson:"_id"`
	DisplayName string `json:"display_name" bson:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty" bson:"avatar_url,omitempty"`
}
