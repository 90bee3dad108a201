package gluster

import (
	"bufio"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var brickKeyPattern = regexp.MustCompile(`^Brick([1-9][0-9]*)$`)

const optionsSectionKey = "Options Reconfigured"

// Brick volume info 中的一个 brick
type Brick struct {
	Ordinal int
	// Config 原始配置，形如 172.31.100.101:/bricks/xosan/xosandir
	Config string
	// IP Config 中第一个冒号之前的部分
	IP string
}

// Volume volume info 的解析结果
type Volume struct {
	Fields  map[string]string
	Options map[string]string
	Bricks  []Brick
}

// Peer pool list 中的一行
type Peer struct {
	UUID     string
	Hostname string
	State    string
}

// ParseVolumeInfo 解析 gluster volume info 的输出
//
// 每行在第一个冒号处拆分为 key 和 value，两侧空白被去除，value 中的冒号保留。
// Brick<k> 按序号 k 排序；Options Reconfigured 之后的行归入 Options。
func ParseVolumeInfo(output string) *Volume {
	volume := &Volume{
		Fields:  make(map[string]string),
		Options: make(map[string]string),
	}

	inOptions := false
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		key, value, ok := splitField(scanner.Text())
		if !ok {
			continue
		}

		if key == optionsSectionKey {
			inOptions = true
			continue
		}

		if m := brickKeyPattern.FindStringSubmatch(key); m != nil {
			ordinal, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			ip, _, _ := strings.Cut(value, ":")
			volume.Bricks = append(volume.Bricks, Brick{
				Ordinal: ordinal,
				Config:  value,
				IP:      ip,
			})
			continue
		}

		if inOptions {
			volume.Options[key] = value
			continue
		}
		volume.Fields[key] = value
	}

	sort.SliceStable(volume.Bricks, func(i, j int) bool {
		return volume.Bricks[i].Ordinal < volume.Bricks[j].Ordinal
	})

	return volume
}

// splitField 在第一个冒号处拆分
func splitField(line string) (string, string, bool) {
	key, value, found := strings.Cut(line, ":")
	if !found {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(value), true
}

// ParsePoolList 解析 gluster pool list 的输出
//
// 第一行为表头。hostname 为 localhost 的行替换为 localAddress，结果按 hostname 排序。
func ParsePoolList(output, localAddress string) []Peer {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) <= 1 {
		return nil
	}

	peers := make([]Peer, 0, len(lines)-1)
	for _, line := range lines[1:] {
		fields := splitColumns(line)
		if len(fields) < 3 {
			continue
		}

		hostname := fields[1]
		if hostname == "localhost" {
			hostname = localAddress
		}
		peers = append(peers, Peer{
			UUID:     fields[0],
			Hostname: hostname,
			State:    strings.Join(fields[2:], " "),
		})
	}

	sort.SliceStable(peers, func(i, j int) bool {
		return peers[i].Hostname < peers[j].Hostname
	})
	return peers
}

func splitColumns(line string) []string {
	var columns []string
	for _, column := range strings.Split(line, "\t") {
		column = strings.TrimSpace(column)
		if column != "" {
			columns = append(columns, column)
		}
	}
	return columns
}
