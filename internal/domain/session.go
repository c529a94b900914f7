package domain

type SessionState struct {
	Token           string
	User            User
	IsAuthenticated bool
	IsLoading       bool
	Error           string
}

func (s SessionState) HasToken() bool {
	return s.Token != ""
}
