package domain

// UserSession identifies the signed in user. It is passed explicitly to every
// remote store call; the zero value means no one is signed in.
type UserSession struct {
	UserId      string
	AccessToken string
}

func (s UserSession) IsAuthenticated() bool {
	return s.AccessToken != ""
}
