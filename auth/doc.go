// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth identifies actors and answers the privilege question.

# Actor Keys

Actor keys use HMAC-SHA256 to create deterministic, verifiable keys:

	key := auth.GenerateActorKey(actorID, salt)
	err := auth.ValidateActorKey(actorID, key, salt)

The key is URL-safe base64 encoded without padding. Since it's deterministic,
the same actor ID and salt always produce the same key, so nothing has to be
stored to validate it. The HTTP adapter expects the pair in the X-Actor-ID and
X-Actor-Key headers.

# Privileges

Privileges is the only authorization model:

	p := auth.NewPrivileges([]string{"coach1", "coach2"})
	p.IsPrivileged("coach1") // true

Privileged actors may resolve confirmation requests, trigger stages by hand
and edit the location catalog. Everyone else may only vote and read.
*/
package auth
