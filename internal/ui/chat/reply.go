// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"

	"github.com/starmind/starmind-tui/internal/api"
)

// ReplyOutcome classifies the result of a chat request. stored is the
// assistant message to append to the conversation, or "" when nothing is
// stored. status is a status line error, or "" when there is none.
//
// Server errors are stored so the thread shows what happened; transport
// failures only touch the status line.
func ReplyOutcome(reply string, err error) (stored, status string) {
	var se *api.StatusError
	switch {
	case errors.As(err, &se):
		return errorPrefix + se.Text(), ""
	case errors.Is(err, api.ErrUnreachable):
		return "", unreachableText
	case err != nil:
		return "", "网络错误：" + err.Error()
	case reply == "":
		return emptyReplyText, ""
	default:
		return reply, ""
	}
}
