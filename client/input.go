package client

// Intent 客户端发往服务端的意图（封闭的标签联合）
type Intent interface {
	Tag() string
	intent()
}

// Join 以指定名字加入游戏
type Join struct {
	Name string
}

// Input 移动输入；Seq 为本地序列号，服务端用于排序与去重
// 示例：{"Input":{"input":{"dx":0,"dy":-1,"sequence_number":1}}}
type Input struct {
	DX  int
	DY  int
	Seq uint64
}

// Step 离散移动：沿方向移动固定距离，不携带序列号
type Step struct {
	DX       int
	DY       int
	Distance float64
}

// Quit 主动离开游戏
type Quit struct{}

// Ready 玩家准备就绪
type Ready struct{}

const (
	TagJoin        = "Join"
	TagInput       = "Input"
	TagMove        = "Move"
	TagQuit        = "Quit"
	TagReady       = "Ready"
	TagWelcome     = "Welcome"
	TagStateUpdate = "StateUpdate"
	TagBye         = "Bye"
)

func (Join) Tag() string { return TagJoin }
func (Input) Tag() string { return TagInput }
func (Step) Tag() string { return TagMove }
func (Quit) Tag() string { return TagQuit }
func (Ready) Tag() string { return TagReady }

func (Join) intent() {}
func (Input) intent() {}
func (Step) intent() {}
func (Quit) intent() {}
func (Ready) intent() {}

// validAxis 单轴分量只允许 -1/0/1
func validAxis(v int) bool { return v >= -1 && v <= 1 }
