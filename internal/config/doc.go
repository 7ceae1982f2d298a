// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// There are two roots: ClientConfig for notifywatch and ServerConfig for notifyd.
package config
