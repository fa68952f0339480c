package slack

import "net/http"

type headers = http.Header

// envelope is implemented by every Web API response.
type envelope interface {
	status() (bool, string)
}

type base struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (b *base) status() (bool, string) {
	if b.OK {
		return true, ""
	}
	if b.Error == "" {
		return false, "unknown_error"
	}
	return false, b.Error
}

type authTestResponse struct {
	base
	URL    string `json:"url"`
	Team   string `json:"team"`
	User   string `json:"user"`
	UserID string `json:"user_id"`
}

type channel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsMember bool   `json:"is_member"`
}

type conversationsListResponse struct {
	base
	Channels []channel `json:"channels"`
}

type message struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	User    string `json:"user"`
	BotID   string `json:"bot_id"`
	Text    string `json:"text"`
	TS      string `json:"ts"`
}

type historyResponse struct {
	base
	Messages []message `json:"messages"`
}

type userInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RealName string `json:"real_name"`
	Profile  struct {
		DisplayName string `json:"display_name"`
		RealName    string `json:"real_name"`
		Email       string `json:"email"`
	} `json:"profile"`
}

// displayName prefers the profile display name and falls back to the raw
// user id.
func (u userInfo) displayName(fallback string) string {
	for _, n := range []string{u.Profile.DisplayName, u.Profile.RealName, u.RealName, u.Name} {
		if n != "" {
			return n
		}
	}
	return fallback
}

type usersInfoResponse struct {
	base
	User userInfo `json:"user"`
}
