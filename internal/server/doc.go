// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server is the StarMind development backend.
//
// Endpoints:
//   - GET  /            - redirect to /chat or /login
//   - GET  /login       - login page from the web root
//   - GET  /chat        - chat page (authenticated)
//   - GET  /api/me      - session check
//   - POST /api/login   - issue a session cookie
//   - POST /api/logout  - revoke the session cookie
//   - POST /api/clear   - reset the server-side chat history
//   - POST /api/chat    - one chat turn, OpenAI completion shape
//
// Anything else is served from the web root for GET and HEAD.
//
// Sessions are keyed by the starmind_token cookie, an HS256 JWT that is
// also tracked in a TTL cache so logout revokes it immediately.
package server
