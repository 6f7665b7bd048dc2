package graphics

// Context is the host application's window and GL context. The engine
// draws into it between bridge.BeginRendering and bridge.EndRendering.
type Context interface {
	MakeCurrent()
	Shutdown()
	ShouldClose() bool
	EndFrame()
	GetFramebufferSize() (int, int)
	Time() float64
}
