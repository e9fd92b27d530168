// Package services holds cross-cutting helpers shared by the external
// service adapters: the error taxonomy used to classify step failures and
// context annotation for correlating logs with items, steps, and runs.
package services
