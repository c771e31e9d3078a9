// Package openai adapts OpenAI-compatible chat completion APIs to domain.Generator.
package openai
