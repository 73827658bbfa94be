// Package main is the entry point of the ability manager.
//
// The server hosts the ability lifecycle controller: the launcher runs
// in-process, every other ability gets a worker task fed by a command
// queue, and the controller keeps exactly one ability in the foreground.
//
// Configuration comes from the environment (see internal/infrastructure/config);
// flags override a few values:
//
//	./server -port 8000 -apps ./apps
//	./server -dev
//
// Endpoints:
//
//	POST /abilities/launcher          bring up the launcher
//	POST /abilities/start             start an ability
//	POST /abilities/:token/terminate  finish the foreground ability
//	POST /abilities/:token/force-stop tear an ability down
//	POST /abilities/:token/done       worker lifecycle acknowledgement
//	GET  /abilities/top               foreground ability
//	GET  /missions                    mission list
//	GET  /events                      lifecycle event stream (WebSocket)
//	GET  /metrics                     Prometheus metrics
package main
