/*
Package host runs worker tasks for abilities that are not the launcher.

A task is a goroutine created with CreateTask and fed through the bounded
queue attached by CreateQueue. Post never blocks: a full queue reports
ErrQueueFull and a destroyed one ErrQueueClosed. For every command the task
calls its Runner and then reports completion through the Acknowledger.

Tasks are destroyed before their queue. DestroyTask lets the running command
finish; ForceDestroy also closes the queue so pending commands are dropped.
*/
package host
