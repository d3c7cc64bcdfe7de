// Copyright © 2026 Noesis Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// usage reports one tenant's metered consumption for a calendar month.
// Defaults to the current month (UTC).
func (s *Server) usage(c echo.Context) error {
	ctx := c.Request().Context()
	t, err := s.config.Resolver.Resolve(ctx, c.Param("tenant"))
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	year, month := now.Year(), now.Month()
	if v := c.QueryParam("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid year")
		}
		year = y
	}
	if v := c.QueryParam("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid month")
		}
		month = time.Month(m)
	}

	summary, err := s.config.Meter.MonthlySummary(ctx, t.ID, year, month)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

// usageCurrent reports the running query count for the current month,
// next to the tenant's quota so the app can warn before the limit.
func (s *Server) usageCurrent(c echo.Context) error {
	ctx := c.Request().Context()
	t, err := s.config.Resolver.Resolve(ctx, c.Param("tenant"))
	if err != nil {
		return err
	}

	count, err := s.config.Meter.CurrentMonthCount(ctx, t.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tenant_id": t.ID,
		"queries":   count,
		"limit":     t.Limits.MaxQueriesPerMonth,
	})
}
