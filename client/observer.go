package client

// Observer 展示层协作者：接收状态、收发日志、错误与视图推送
// 所有回调都在会话所在的单一逻辑线程上同步调用
type Observer interface {
	StatusChanged(state State, detail string)
	MessageSent(in Intent, raw []byte)
	MessageReceived(msg Message, raw []byte)
	ErrorReported(err error)
	ViewUpdated(v View)
}

// NopObserver 空实现，可嵌入以只覆盖关心的回调
type NopObserver struct{}

func (NopObserver) StatusChanged(State, string) {}
func (NopObserver) MessageSent(Intent, []byte) {}
func (NopObserver) MessageReceived(Message, []byte) {}
func (NopObserver) ErrorReported(error) {}
func (NopObserver) ViewUpdated(View) {}
