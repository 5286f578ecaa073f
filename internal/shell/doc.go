// Package shell starts interactive shells and exposes their I/O as channels.
//
// Two backends implement the Spawner and Process interfaces:
//   - PTYSpawner: the shell runs on a pseudo-terminal (creack/pty), so prompts,
//     line editing, job control and resizing behave like a real terminal
//   - PipeSpawner: degraded fallback with stdin and a merged stdout/stderr pipe;
//     Resize is a no-op and carriage returns in input become newlines
//
// The backend is chosen once at startup with Select, which probes for pty
// support. The shell binary always comes from operator configuration or the
// host environment, never from the client.
//
// Output is delivered over a bounded channel read by a single consumer, which
// keeps ordering and backpressure explicit. Done closes after the final chunk.
//
// Example Usage:
//
//	spawner, err := shell.Select(shell.ModeAuto, shell.Options{}, logger)
//	proc, err := spawner.Spawn(ctx, shell.SpawnOptions{Cols: 80, Rows: 24, Dir: "/tmp"})
//	proc.Write([]byte("echo hi\r"))
//	for chunk := range proc.Output() {
//	    os.Stdout.Write(chunk)
//	}
//	<-proc.Done()
package shell
