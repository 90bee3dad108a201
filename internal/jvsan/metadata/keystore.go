package metadata

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ed25519"
	"golang.org/x/crypto/ssh"
)

const (
	privateKeyFile = "id_ed25519"
	publicKeyFile  = "id_ed25519.pub"
)

// ServiceKey 控制节点登录存储节点使用的密钥
type ServiceKey struct {
	Signer      ssh.Signer
	PublicKey   string // authorized_keys 格式
	Fingerprint string
}

// KeyStore 服务密钥存储
// 私钥以 OpenSSH 格式保存在 dir 下，首次使用时生成
type KeyStore struct {
	dir     string
	comment string
}

// NewKeyStore 创建密钥存储
func NewKeyStore(dir, comment string) *KeyStore {
	return &KeyStore{dir: dir, comment: comment}
}

// LoadOrCreate 读取服务密钥，不存在时生成新的 ed25519 密钥
func (s *KeyStore) LoadOrCreate() (*ServiceKey, error) {
	privPath := filepath.Join(s.dir, privateKeyFile)

	data, err := os.ReadFile(privPath)
	if errors.Is(err, fs.ErrNotExist) {
		data, err = s.generate()
	}
	if err != nil {
		return nil, fmt.Errorf("load service key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("parse service key %s: %w", privPath, err)
	}
	return newServiceKey(signer, s.comment), nil
}

func (s *KeyStore) generate() ([]byte, error) {
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(privateKey, s.comment)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	privPEM := pem.EncodeToMemory(block)

	signer, err := ssh.NewSignerFromKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}
	pub := newServiceKey(signer, s.comment).PublicKey

	if err := writeFileAtomic(filepath.Join(s.dir, privateKeyFile), privPEM, 0o600); err != nil {
		return nil, err
	}
	if err := writeFileAtomic(filepath.Join(s.dir, publicKeyFile), []byte(pub+"\n"), 0o644); err != nil {
		return nil, err
	}
	return privPEM, nil
}

func newServiceKey(signer ssh.Signer, comment string) *ServiceKey {
	pub := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(signer.PublicKey())))
	if comment != "" {
		pub += " " + comment
	}
	return &ServiceKey{
		Signer:      signer,
		PublicKey:   pub,
		Fingerprint: Fingerprint(signer.PublicKey()),
	}
}

// Fingerprint 计算 SHA256 指纹，格式同 ssh-keygen -l
func Fingerprint(publicKey ssh.PublicKey) string {
	hash := sha256.Sum256(publicKey.Marshal())
	return "SHA256:" + base64.RawStdEncoding.EncodeToString(hash[:])
}

// writeFileAtomic 通过临时文件和 rename 写入文件
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, perm); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}
