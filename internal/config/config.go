// Copyright (C) 2020  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package config binds environment-provided configuration through viper, the
// way every owning package in this repository declares its own defaults.
package config

import "github.com/spf13/viper"

func init() {
	viper.SetDefault("gateway.bindaddress", ":8080")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.redactips", false)

	_ = viper.BindEnv("gateway.bindaddress", "GATEWAY_BIND_ADDRESS")
	_ = viper.BindEnv("log.level", "LOG_LEVEL")
	_ = viper.BindEnv("log.redactips", "LOG_REDACT_IPS")
}

// BindAddress is the address the Gateway's HTTP server listens on.
func BindAddress() string {
	return viper.GetString("gateway.bindaddress")
}

// LogLevel is the minimum zerolog level to emit.
func LogLevel() string {
	return viper.GetString("log.level")
}

// RedactIPs reports whether client_ip values are written as "[REDACTED]" in
// audit rows. No structured log event carries the client IP.
func RedactIPs() bool {
	return viper.GetBool("log.redactips")
}
