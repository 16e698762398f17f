/*
Package session manages named detail views.

A view is one detailtree.Tree shared by every caller that names it (an HTTP client,
an MCP agent, a terminal). The Manager serializes access per view, optionally across
replicas through a ports.DistributedLocker, and queues data changes for views that
are not being used at the time they happen.
*/
package session
