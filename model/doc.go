// Package model defines the provider‑agnostic abstraction used to drive
// language models for intent classification inside dialogmesh.
//
// Core goals:
//   - Keep request/response shapes minimal and transport independent
//   - Hide vendor SDK types behind a single synchronous Generate call
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic) implement the Model interface from this
// package so the NLU layer remains decoupled from vendor SDKs.
package model
