// Package sshexec 通过 SSH 在存储节点上执行命令
package sshexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// Result 命令执行结果
// 退出码非零不视为错误，由调用方判断
type Result struct {
	ExitStatus int
	Stdout     string
	Stderr     string
}

// Executor 远程命令通道
type Executor interface {
	// Execute 在 address 上执行 command
	// 只有连接、认证等传输层失败才返回 error
	Execute(ctx context.Context, address, command string) (*Result, error)
}

// Client 基于 SSH 的 Executor 实现
type Client struct {
	user        string
	port        int
	signer      ssh.Signer
	dialTimeout time.Duration
}

// Option Client 选项
type Option func(*Client)

// WithUser 设置登录用户，默认 root
func WithUser(user string) Option {
	return func(c *Client) {
		c.user = user
	}
}

// WithPort 设置 SSH 端口，默认 22
func WithPort(port int) Option {
	return func(c *Client) {
		c.port = port
	}
}

// WithDialTimeout 设置建立连接的超时时间
func WithDialTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.dialTimeout = timeout
	}
}

// New 创建 SSH 客户端，使用 signer 进行公钥认证
func New(signer ssh.Signer, opts ...Option) *Client {
	c := &Client{
		user:        "root",
		port:        22,
		signer:      signer,
		dialTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute 实现 Executor 接口
func (c *Client) Execute(ctx context.Context, address, command string) (*Result, error) {
	logger := zerolog.Ctx(ctx)
	target := net.JoinHostPort(address, strconv.Itoa(c.port))

	dialer := &net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}

	config := &ssh.ClientConfig{
		User:            c.user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(c.signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.dialTimeout,
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, target, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", target, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open ssh session on %s: %w", target, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	logger.Debug().Str("address", address).Str("command", command).Msg("Executing remote command")

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		client.Close()
		return nil, ctx.Err()
	case err = <-done:
	}

	result := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		result.ExitStatus = exitErr.ExitStatus()
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("run %q on %s: %w", command, address, err)
	}
	return result, nil
}
