// Copyright © 2026 Noesis Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package session

// Scope carries the per-request execution scope. Every tool invocation
// receives a Scope as an explicit argument; it is assembled once per
// chat request and never stored on the pipeline, so concurrent
// requests for different sites cannot observe each other's values.
type Scope struct {
	// TenantID identifies the tenant whose pipeline serves the request.
	TenantID string
	// SiteID is the mandatory data partition for scoped tables.
	SiteID int
	// Target selects the audience content tier (e.g. "STD", "KIDS").
	Target string
	// Language is the detected reply language code (it, en, fr, es).
	Language string
}
