// Package jellyfin provides a minimal client for the Jellyfin REST API.
//
// It covers the calls needed by a player gateway: Quick Connect pairing,
// client capabilities, listing a user's movies and episodes, and playback
// lifecycle reporting (start, progress, stopped).
//
// # Basic Usage
//
//	client := jellyfin.NewClient("http://jellyfin:8096",
//		jellyfin.WithDevice("Quest 3", deviceID),
//	)
//	qc, err := client.InitiateQuickConnect(ctx)
//	// show qc.Code to the user, then poll:
//	ok, err := client.QuickConnectApproved(ctx, qc.Secret)
//
// # Errors
//
// Transport failures and non-2xx responses wrap ErrUpstreamUnavailable.
// 401 and 403 responses wrap ErrUnauthorized instead.
//
// # Time Units
//
// Jellyfin positions are ticks of 100ns. Callers convert from milliseconds
// with TicksPerMillisecond.
package jellyfin
