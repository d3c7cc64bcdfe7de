// Copyright © 2026 Noesis Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package museum

import (
	"context"

	"github.com/noesis-labs/cicerone/pkg/broker"
	"github.com/noesis-labs/cicerone/pkg/session"
	"github.com/noesis-labs/cicerone/pkg/tool"
)

// MuseumInfoTool fetches the museum's institutional information.
type MuseumInfoTool struct {
	broker *broker.Broker
}

func (t *MuseumInfoTool) Name() string { return "get_museum_info" }

func (t *MuseumInfoTool) Description() string {
	return "Fetch the museum's institutional information: history, architecture, address, " +
		"and contact details. For opening hours and tickets, use search_documents."
}

func (t *MuseumInfoTool) InputSchema() *tool.JSONSchema {
	return tool.NewObjectSchema("museum information, no parameters", nil, nil)
}

func (t *MuseumInfoTool) Execute(ctx context.Context, scope session.Scope, _ map[string]interface{}) (*tool.Result, error) {
	info, err := t.broker.GetMuseumInfo(ctx, scope.SiteID)
	if err != nil {
		return queryFailed(), nil
	}
	if info == nil {
		return notFound("no information recorded for this museum", ""), nil
	}
	return sqlResult(info), nil
}
