// Package model defines the provider independent interface agents use to
// talk to language models, plus in-process models for tests and demos.
//
// Providers (OpenAI, Anthropic, Gemini) live in sub packages and translate
// Request / Response to their SDKs. Tool calls travel as core.FunctionCallPart
// and results as core.FunctionResponsePart, so callers never branch on the
// vendor.
package model
