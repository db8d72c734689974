package recipes

const depsScript = `
sudo apt-get update
sudo apt-get install -y htop powercap-utils python3 python3-pip linux-tools-$(uname -r) linux-cloud-tools-$(uname -r) git libssl-dev libz-dev luarocks tcpdump
pip3 install aiohttp asyncio pandas numpy scikit-learn matplotlib psutil
sudo luarocks install luasocket
`

const dockerScript = `
sudo apt-get update
sudo apt-get install ca-certificates curl -y
sudo install -m 0755 -d /etc/apt/keyrings
sudo curl -fsSL https://download.docker.com/linux/ubuntu/gpg -o /etc/apt/keyrings/docker.asc
sudo chmod a+r /etc/apt/keyrings/docker.asc

echo \
  "deb [arch=$(dpkg --print-architecture) signed-by=/etc/apt/keyrings/docker.asc] https://download.docker.com/linux/ubuntu \
  $(. /etc/os-release && echo "$VERSION_CODENAME") stable" | \
  sudo tee /etc/apt/sources.list.d/docker.list > /dev/null
sudo apt-get update

sudo apt-get install docker-ce docker-ce-cli containerd.io docker-buildx-plugin docker-compose-plugin -y

sudo chmod 666 /var/run/docker.sock
`

const (
	rebootCommand    = "sudo reboot"
	governorCommand  = "sudo cpupower frequency-set -g %s"
	frequencyCommand = "sudo cpupower -c %s frequency-set -f %s"
	// intel_pstate exposes the inverse flag: 1 disables turbo.
	turboCommand = "echo %d | sudo tee /sys/devices/system/cpu/intel_pstate/no_turbo"
	smtCommand   = "echo %s | sudo tee /sys/devices/system/cpu/smt/control"
)
