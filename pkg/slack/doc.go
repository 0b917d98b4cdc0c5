// Package slack implements the one Slack API call that a [Socket Mode]
// client needs: [apps.connections.open], which exchanges an app-level
// token for a temporary WebSocket URL.
//
// [Socket Mode]: https://docs.slack.dev/apis/events-api/using-socket-mode
// [apps.connections.open]: https://docs.slack.dev/reference/methods/apps.connections.open
package slack
