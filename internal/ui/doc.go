// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for the studio client:
//  1. [LoginView] : Authenticate (or resume a saved session)
//  2. [HomeView] : Pick an area of the studio
//  3. [GenerateView] : Fill the music generation form
//  4. [ProgressView] : Follow realtime generation progress
//  5. [LibraryView] : Browse the generated-music collection
//  6. [NotificationsView] : Read and acknowledge the feed
//  7. [FinanceView] : The machine bookkeeping panel
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Realtime changes flow through a change channel pumped by the session services'
// OnChange callbacks, so pushed envelopes repaint the UI without polling.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, tab, q) with
// contextual help displayed via charmbracelet/bubbles/help.
package ui
