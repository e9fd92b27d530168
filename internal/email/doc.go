// Package email delivers finished summaries over SMTP.
package email
