package events

// SlashCommand is the payload of a [SlashCommands] envelope. All the
// fields are strings, because Slack sends them as URL-encoded form values.
//
// https://docs.slack.dev/interactivity/implementing-slash-commands#app_command_handling
type SlashCommand struct {
	Token string `json:"token"`

	TeamID              string `json:"team_id"`
	TeamDomain          string `json:"team_domain"`
	EnterpriseID        string `json:"enterprise_id,omitempty"`
	EnterpriseName      string `json:"enterprise_name,omitempty"`
	IsEnterpriseInstall string `json:"is_enterprise_install"`

	ChannelID   string `json:"channel_id"`
	ChannelName string `json:"channel_name"`
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`

	Command     string `json:"command"`
	Text        string `json:"text"`
	APIAppID    string `json:"api_app_id"`
	ResponseURL string `json:"response_url"`
	TriggerID   string `json:"trigger_id"`
}
