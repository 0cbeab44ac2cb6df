// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package credential holds the single bearer API key and gates dispatch on
// its presence. The gate is advisory: it keeps the UI from sending without a
// key, it is not a security boundary.
//
// Gate also serves as the key source for the cloud clients, so a key set at
// runtime (key prompt, config reload) takes effect on the next request.
package credential
