package persona

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"nexusmail/agent/internal/domain"
)

var firstNames = []string{
	"James", "Oliver", "Daniel", "Ethan", "Lucas", "Henry", "Leo", "Mert", "Emre", "Kaan",
	"Emma", "Sophia", "Mia", "Clara", "Nora", "Elif", "Zeynep", "Selin", "Ada", "Naz",
}

var lastNames = []string{
	"Walker", "Bennett", "Carter", "Hayes", "Brooks", "Reed", "Foster",
	"Yilmaz", "Demir", "Kaya", "Aydin", "Arslan", "Koc", "Ozturk",
}

var streets = []string{
	"Maple Street", "Cedar Avenue", "Oak Lane", "Elm Drive", "Pine Road",
	"Birch Court", "Willow Way", "Aspen Boulevard",
}

var cities = []string{
	"Springfield", "Riverton", "Lakeside", "Fairview", "Brookfield", "Ashland",
}

const passwordCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%"

// Generator 在本地生成一次性的虚拟身份，生成结果不落盘也不上报。
type Generator struct {
	mu     sync.Mutex
	random *rand.Rand
}

func NewGenerator() *Generator {
	return &Generator{
		random: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Generate 随机生成一份完整的虚拟身份。
func (g *Generator) Generate() domain.Persona {
	g.mu.Lock()
	defer g.mu.Unlock()

	first := firstNames[g.random.Intn(len(firstNames))]
	last := lastNames[g.random.Intn(len(lastNames))]

	return domain.Persona{
		FullName:  first + " " + last,
		Password:  g.passwordLocked(14),
		Address:   g.addressLocked(),
		BirthDate: g.birthDateLocked(),
	}
}

// Username 由全名派生登录名，带随机数字后缀避免撞名。
func (g *Generator) Username(p domain.Persona) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	base := strings.ToLower(strings.ReplaceAll(p.FullName, " ", "_"))
	return fmt.Sprintf("%s%d", base, g.random.Intn(100))
}

// Phone 生成十位数字的电话号码。
func (g *Generator) Phone() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return fmt.Sprintf("%d", g.random.Int63n(9000000000)+1000000000)
}

func (g *Generator) passwordLocked(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = passwordCharset[g.random.Intn(len(passwordCharset))]
	}
	return string(b)
}

func (g *Generator) addressLocked() string {
	return fmt.Sprintf("%d %s, %s",
		g.random.Intn(9899)+100,
		streets[g.random.Intn(len(streets))],
		cities[g.random.Intn(len(cities))],
	)
}

// birthDateLocked 生成 1975 到 2002 年之间的出生日期，ISO 格式。
func (g *Generator) birthDateLocked() string {
	year := 1975 + g.random.Intn(28)
	month := 1 + g.random.Intn(12)
	day := 1 + g.random.Intn(28)
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}
