// Package config loads the authcore server's settings from the process
// environment, with an optional .env file.
package config
